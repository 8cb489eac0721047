package script

import (
	"fmt"
	"math"
)

// Doctrine represents a high-level strategic posture. Weights are 0.0–1.0;
// the compiler maps them to concrete rule parameters.
type Doctrine struct {
	Name            string  `json:"name"`
	Rationale       string  `json:"rationale"`
	EconomyPriority float64 `json:"economy_priority"` // contracting vs everything else
	Aggression      float64 `json:"aggression"`       // mission team size, deploy eagerness
	IntelPriority   float64 `json:"intel_priority"`   // lead investigation effort
	TechPriority    float64 `json:"tech_priority"`    // upgrade spending
	TrainingWeight  float64 `json:"training_weight"`  // academy usage
	ReserveMoney    int64   `json:"reserve_money"`    // never spend below this
}

// DefaultDoctrine returns a balanced baseline posture.
func DefaultDoctrine() Doctrine {
	return Doctrine{
		Name:            "Balanced",
		Rationale:       "Default balanced play: cover missions, keep one lead warm, grow the roster",
		EconomyPriority: 0.5,
		Aggression:      0.5,
		IntelPriority:   0.5,
		TechPriority:    0.5,
		TrainingWeight:  0.3,
		ReserveMoney:    200,
	}
}

// Validate clamps all weights to their valid ranges.
func (d *Doctrine) Validate() {
	d.EconomyPriority = clamp(d.EconomyPriority, 0, 1)
	d.Aggression = clamp(d.Aggression, 0, 1)
	d.IntelPriority = clamp(d.IntelPriority, 0, 1)
	d.TechPriority = clamp(d.TechPriority, 0, 1)
	d.TrainingWeight = clamp(d.TrainingWeight, 0, 1)
	if d.ReserveMoney < 0 {
		d.ReserveMoney = 0
	}
}

// CompileDoctrine generates a complete rule set from a doctrine's weights.
// All conditions are built via fmt.Sprintf with interpolated values, so the
// compiler never generates invalid expr.
func CompileDoctrine(d Doctrine) []*Rule {
	d.Validate()
	var rules []*Rule

	missionTeam := lerp(2, 4, d.Aggression)
	leadTeam := lerp(1, 3, d.IntelPriority)
	trainees := lerp(0, 2, d.TrainingWeight)
	upgradeFloor := d.ReserveMoney + lerp64(400, 0, d.TechPriority)
	contractFloor := lerp64(200, 1000, d.EconomyPriority)

	rules = append(rules, &Rule{
		Name:         "deploy-urgent-mission",
		Priority:     900,
		Category:     "roster",
		Exclusive:    true,
		ConditionSrc: fmt.Sprintf(`UrgentMission() != 0 && IdleCount() >= %d`, missionTeam),
		Action:       DeployAction(missionTeam),
	})

	rules = append(rules, &Rule{
		Name:         "investigate-open-lead",
		Priority:     800,
		Category:     "roster",
		Exclusive:    true,
		ConditionSrc: fmt.Sprintf(`OpenLead() != "" && IdleCount() >= %d`, leadTeam+missionTeam),
		Action:       InvestigateAction(leadTeam),
	})

	rules = append(rules, &Rule{
		Name:         "hire-to-cap",
		Priority:     700,
		Category:     "budget",
		Exclusive:    false,
		ConditionSrc: fmt.Sprintf(`RosterRoom() > 0 && Money() >= HireCost() + %d`, d.ReserveMoney),
		Action:       ActionHire,
	})

	rules = append(rules, &Rule{
		Name:         "buy-upgrade",
		Priority:     600,
		Category:     "budget",
		Exclusive:    true,
		ConditionSrc: fmt.Sprintf(`AffordableUpgrade() != "" && Money() >= %d`, upgradeFloor),
		Action:       ActionBuyUpgrade,
	})

	if trainees > 0 {
		rules = append(rules, &Rule{
			Name:         "train-spare-agents",
			Priority:     500,
			Category:     "roster",
			Exclusive:    false,
			ConditionSrc: fmt.Sprintf(`TrainingRoom() > 0 && IdleCount() > %d`, missionTeam),
			Action:       TrainAction(trainees),
		})
	}

	rules = append(rules, &Rule{
		Name:         "contract-when-broke",
		Priority:     400,
		Category:     "roster",
		Exclusive:    false,
		ConditionSrc: fmt.Sprintf(`Money() < %d && IdleCount() > 0`, contractFloor),
		Action:       ActionContractIdle,
	})

	return rules
}

// clamp restricts v to [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// lerp linearly interpolates between min and max by t (0–1), returning an int.
func lerp(min, max int, t float64) int {
	return min + int(math.Round(float64(max-min)*t))
}

func lerp64(min, max int64, t float64) int64 {
	return min + int64(math.Round(float64(max-min)*t))
}
