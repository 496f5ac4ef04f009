package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDecodePayloadRoundTrips(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
	}{
		{
			name: "activity upsert",
			payload: ActivityUpsertPayload{
				ActivityID:   "act-1",
				StartedAt:    time.Date(2026, 3, 5, 7, 0, 0, 0, time.UTC),
				EndedAt:      time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
				ActivityType: "run",
				Calories:     400,
			},
		},
		{
			name:    "nutrition upsert",
			payload: NutritionUpsertPayload{Date: "2026-03-05", Calories: 2100, ProteinG: 140},
		},
		{
			name:    "nutrition delete",
			payload: NutritionDeletePayload{Date: "2026-03-05"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(tc.payload)
			require.NoError(t, err)

			decoded, err := DecodePayload(Item{Kind: tc.payload.Kind(), Payload: raw})
			require.NoError(t, err)
			require.Equal(t, tc.payload, decoded)
		})
	}
}

func TestDecodePayloadRejectsUnknownKind(t *testing.T) {
	_, err := DecodePayload(Item{Kind: "weight_upsert", Payload: []byte(`{}`)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "weight_upsert")
}

func TestClientRecordIDsAreDeterministic(t *testing.T) {
	require.Equal(t, "nutrition-2026-03-05", NutritionClientRecordID("2026-03-05"))
	require.Equal(t, NutritionClientRecordID("2026-03-05"), NutritionClientRecordID("2026-03-05"))
	require.Equal(t, "act-9-calories", ActivityCaloriesRecordID("act-9"))
}
