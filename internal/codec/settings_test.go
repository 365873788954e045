package codec

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGameSettingsRoundTrip(t *testing.T) {
	cases := []GameSettings{
		{},
		{
			MaxPlayers:        10,
			MapID:             2,
			PlayerSpeed:       1.25,
			CrewVision:        1.0,
			ImpostorVision:    1.5,
			KillCooldown:      22.5,
			CommonTasks:       1,
			ShortTasks:        3,
			LongTasks:         2,
			EmergencyMeetings: 1,
			ImpostorCount:     2,
			KillDistance:      1,
			DiscussionTimeSec: 15,
			VotingTimeSec:     120,
			AnonymousVotes:    true,
			ConfirmEjects:     true,
		},
		{
			MaxPlayers:     15,
			MapID:          255,
			PlayerSpeed:    -1,
			ImpostorCount:  3,
			ConfirmEjects:  false,
			AnonymousVotes: false,
		},
	}

	for i, want := range cases {
		encoded := MarshalGameSettings(want)
		got, err := UnmarshalGameSettings(encoded)
		if err != nil {
			t.Fatalf("case %d: unmarshal: %v", i, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("case %d: round trip mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestGameSettingsTruncated(t *testing.T) {
	encoded := MarshalGameSettings(GameSettings{MaxPlayers: 10})
	if _, err := UnmarshalGameSettings(encoded[:3]); err == nil {
		t.Fatal("expected error decoding truncated settings")
	}
}
