package game

// Policy holds the per-mode rules the recording flow enforces. The custom
// mode historically shipped with the minimum player check disabled, so the
// flags are configuration rather than constants.
type Policy struct {
	// MinPlayers is the minimum participant count.
	MinPlayers int
	// EnforceMinPlayers gates whether MinPlayers is checked when the
	// player picker is closed.
	EnforceMinPlayers bool
	// AllowSelfElimination permits a player to appear as their own
	// eliminator.
	AllowSelfElimination bool
	// AllowWinnerElimination permits eliminations targeting players with
	// a recorded win.
	AllowWinnerElimination bool
}

// EffectiveMinPlayers returns the participant minimum to bake into drafts,
// 0 when enforcement is off.
func (p Policy) EffectiveMinPlayers() int {
	if !p.EnforceMinPlayers {
		return 0
	}
	return p.MinPlayers
}
