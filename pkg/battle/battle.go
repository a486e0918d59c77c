// Package battle runs a scripted two-party exchange: a fixed list of attack
// steps applied one at a time to an ally and an enemy d20 actor.
package battle

import (
	"fmt"

	"github.com/jwebster45206/d20"
	"github.com/jwebster45206/novel-engine/pkg/content"
)

// MaxHP is the starting and maximum health of both sides.
const MaxHP = 100

// Health is the two-party health record, each side in [0, MaxHP].
type Health struct {
	Ally  int `json:"allyHP"`
	Enemy int `json:"enemyHP"`
}

// FullHealth is the health both sides start a battle with.
func FullHealth() Health {
	return Health{Ally: MaxHP, Enemy: MaxHP}
}

// newCombatant builds a side's actor at full health. It only fails for a
// non-positive max HP, which MaxHP rules out.
func newCombatant(side content.Side) *d20.Actor {
	actor, err := d20.NewActor(string(side)).WithHP(MaxHP).Build()
	if err != nil {
		panic(fmt.Sprintf("battle: building %s actor: %v", side, err))
	}
	return actor
}

// restoreHP sets an actor's HP from a persisted value, clamped into range.
func restoreHP(a *d20.Actor, hp int) {
	_ = a.SetHP(max(0, min(hp, a.MaxHP())))
}

// Outcome is the result of a finished battle.
type Outcome string

const (
	OutcomePending Outcome = ""
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// PhaseResult describes what one ProcessNextPhase call did. Step is nil when
// the call found the battle already complete.
type PhaseResult struct {
	Step     *content.AttackStep `json:"step,omitempty"`
	Phase    int                 `json:"phase"`
	Health   Health              `json:"health"`
	Complete bool                `json:"complete"`
}

// Battle is the phase cursor plus the two combatants for one fight. The zero
// value is not usable; call New or Resume.
type Battle struct {
	steps []content.AttackStep
	phase int
	ally  *d20.Actor
	enemy *d20.Actor
}

// New starts a battle over steps at full health.
func New(steps []content.AttackStep) *Battle {
	return &Battle{
		steps: steps,
		ally:  newCombatant(content.SideAlly),
		enemy: newCombatant(content.SideEnemy),
	}
}

// Resume rebuilds a battle from persisted progress. Out-of-range values are
// clamped rather than rejected.
func Resume(steps []content.AttackStep, health Health, phase int) *Battle {
	if phase < 0 {
		phase = 0
	}
	if phase > len(steps) {
		phase = len(steps)
	}
	b := New(steps)
	b.phase = phase
	restoreHP(b.ally, health.Ally)
	restoreHP(b.enemy, health.Enemy)
	return b
}

func (b *Battle) actor(side content.Side) *d20.Actor {
	if side == content.SideAlly {
		return b.ally
	}
	return b.enemy
}

// ProcessNextPhase applies the next attack step. Damage lands on the actor's
// opponent and healing on the actor. Once every step has been consumed the
// call changes nothing and reports Complete.
func (b *Battle) ProcessNextPhase() PhaseResult {
	if b.IsComplete() {
		return PhaseResult{Phase: b.phase, Health: b.Health(), Complete: true}
	}

	step := b.steps[b.phase]
	if step.Damage > 0 {
		b.actor(step.Side.Opponent()).SubHP(step.Damage)
	}
	if step.Heal > 0 {
		b.actor(step.Side).AddHP(step.Heal)
	}
	b.phase++

	return PhaseResult{
		Step:     &step,
		Phase:    b.phase,
		Health:   b.Health(),
		Complete: b.IsComplete(),
	}
}

// IsComplete reports whether every step has been applied.
func (b *Battle) IsComplete() bool {
	return b.phase >= len(b.steps)
}

func (b *Battle) Phase() int      { return b.phase }
func (b *Battle) TotalSteps() int { return len(b.steps) }
func (b *Battle) Remaining() int  { return len(b.steps) - b.phase }

// Health reads both combatants' current HP.
func (b *Battle) Health() Health {
	return Health{Ally: b.ally.HP(), Enemy: b.enemy.HP()}
}

// KnockedOut reports whether side has been brought to 0 HP.
func (b *Battle) KnockedOut(side content.Side) bool {
	return b.actor(side).IsKnockedOut()
}

// Outcome is pending until the battle completes, then victory when the ally
// finishes with more health than the enemy.
func (b *Battle) Outcome() Outcome {
	if !b.IsComplete() {
		return OutcomePending
	}
	if b.ally.HP() > b.enemy.HP() {
		return OutcomeVictory
	}
	return OutcomeDefeat
}
