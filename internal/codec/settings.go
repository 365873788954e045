package codec

// GameSettings is the negotiable room configuration carried in HostGame
// and SyncSettings payloads: map id, max players, impostor
// count, task mix, vote timers.
type GameSettings struct {
	MaxPlayers        uint8
	MapID             uint8
	PlayerSpeed       float32
	CrewVision        float32
	ImpostorVision    float32
	KillCooldown      float32
	CommonTasks       uint8
	ShortTasks        uint8
	LongTasks         uint8
	EmergencyMeetings uint8
	ImpostorCount     uint8
	KillDistance      uint8
	DiscussionTimeSec int32
	VotingTimeSec     int32
	AnonymousVotes    bool
	ConfirmEjects     bool
}

// MarshalGameSettings encodes s into the wire form used by HostGame and
// SyncSettings payloads.
func MarshalGameSettings(s GameSettings) []byte {
	w := NewWriter(40)
	w.WriteU8(s.MaxPlayers)
	w.WriteU8(s.MapID)
	w.WriteU32(floatBits(s.PlayerSpeed))
	w.WriteU32(floatBits(s.CrewVision))
	w.WriteU32(floatBits(s.ImpostorVision))
	w.WriteU32(floatBits(s.KillCooldown))
	w.WriteU8(s.CommonTasks)
	w.WriteU8(s.ShortTasks)
	w.WriteU8(s.LongTasks)
	w.WriteU8(s.EmergencyMeetings)
	w.WriteU8(s.ImpostorCount)
	w.WriteU8(s.KillDistance)
	w.WriteI32(s.DiscussionTimeSec)
	w.WriteI32(s.VotingTimeSec)
	w.WriteBool(s.AnonymousVotes)
	w.WriteBool(s.ConfirmEjects)
	return w.Bytes()
}

// UnmarshalGameSettings decodes the wire form MarshalGameSettings
// produces; decode(encode(g)) == g for every GameSettings g.
func UnmarshalGameSettings(buf []byte) (GameSettings, error) {
	r := NewReader(buf)
	var s GameSettings
	var err error
	if s.MaxPlayers, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.MapID, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.PlayerSpeed, err = readFloat(r); err != nil {
		return s, err
	}
	if s.CrewVision, err = readFloat(r); err != nil {
		return s, err
	}
	if s.ImpostorVision, err = readFloat(r); err != nil {
		return s, err
	}
	if s.KillCooldown, err = readFloat(r); err != nil {
		return s, err
	}
	if s.CommonTasks, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.ShortTasks, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.LongTasks, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.EmergencyMeetings, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.ImpostorCount, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.KillDistance, err = r.ReadU8(); err != nil {
		return s, err
	}
	if s.DiscussionTimeSec, err = r.ReadI32(); err != nil {
		return s, err
	}
	if s.VotingTimeSec, err = r.ReadI32(); err != nil {
		return s, err
	}
	if s.AnonymousVotes, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.ConfirmEjects, err = r.ReadBool(); err != nil {
		return s, err
	}
	return s, nil
}

func readFloat(r *Reader) (float32, error) {
	bits, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return floatFromBits(bits), nil
}
