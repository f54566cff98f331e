package types

import (
	"encoding/json"
	"testing"
)

func TestPayload_JSON(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{"empty", Payload{}, "{}"},
		{"single", Payload{{"time", "10:00"}}, `{"time":"10:00"}`},
		{
			"order preserved",
			Payload{{"z", "1"}, {"a", "2"}},
			`{"z":"1","a":"2"}`,
		},
		{
			"escaping",
			Payload{{`he"said`, "line\nbreak"}},
			`{"he\"said":"line\nbreak"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.payload.JSON()
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			if !json.Valid([]byte(got)) {
				t.Fatalf("output is not valid JSON: %s", got)
			}
		})
	}
}

func TestRowVersion_Deleted(t *testing.T) {
	if (RowVersion{Xmin: FirstNormalTxID}).Deleted() {
		t.Fatal("version without xmax reported deleted")
	}
	if !(RowVersion{Xmin: FirstNormalTxID, Xmax: FirstNormalTxID + 1}).Deleted() {
		t.Fatal("version with xmax not reported deleted")
	}
}
