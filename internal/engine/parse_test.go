package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_StrictJSON(t *testing.T) {
	res := Parse(`{"status": "approved", "price_per_sqm": 11500, "confidence": "medium"}`)

	require.Equal(t, ParseOK, res.Outcome)
	require.NotNil(t, res.Payload.Status)
	assert.Equal(t, "approved", *res.Payload.Status)
	require.NotNil(t, res.Payload.PricePerSqm)
	assert.Equal(t, 11500.0, *res.Payload.PricePerSqm)
}

func TestParse_FencedBlock(t *testing.T) {
	res := Parse("Here is what I found:\n```json\n{\"developer\": \"Azorim\"}\n```\nLet me know.")

	require.Equal(t, ParseOK, res.Outcome)
	require.NotNil(t, res.Payload.Developer)
	assert.Equal(t, "Azorim", *res.Payload.Developer)
}

func TestParse_BareFence(t *testing.T) {
	res := Parse("```\n{\"unit_count\": 88}\n```")

	require.Equal(t, ParseOK, res.Outcome)
	require.NotNil(t, res.Payload.UnitCount)
	assert.Equal(t, 88, *res.Payload.UnitCount)
}

func TestParse_ObjectEmbeddedInProse(t *testing.T) {
	res := Parse(`Based on municipal records the answer is {"status": "deposited", "narrative": "plan {deposited} in 2024"} as of today.`)

	require.Equal(t, ParseOK, res.Outcome)
	require.NotNil(t, res.Payload.Status)
	assert.Equal(t, "deposited", *res.Payload.Status)
	assert.Equal(t, "plan {deposited} in 2024", res.Payload.Narrative)
}

func TestParse_ProseIsNoData(t *testing.T) {
	res := Parse("I could not find any information about this complex.")

	assert.Equal(t, ParseNoData, res.Outcome)
}

func TestParse_EmptyIsNoData(t *testing.T) {
	assert.Equal(t, ParseNoData, Parse("").Outcome)
	assert.Equal(t, ParseNoData, Parse("   \n  ").Outcome)
}

func TestParse_BrokenObjectIsMalformed(t *testing.T) {
	res := Parse(`prefix {"status": approved,,} suffix`)

	assert.Equal(t, ParseMalformed, res.Outcome)
}

func TestParse_MalformedFenceIsMalformed(t *testing.T) {
	res := Parse("```json\n{\"status\": \n```")

	assert.Equal(t, ParseMalformed, res.Outcome)
}
