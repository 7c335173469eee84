package core

import "time"

// Move applies a deposit or withdrawal to balance. A withdrawal larger than
// the balance fails with ErrInsufficientBalance, a deposit that would take it
// past MaxCents fails with ErrBalanceLimit. On error the balance is returned
// unchanged.
func Move(balance, amount Money, dir Direction) (Money, error) {
	if err := amount.Validate(); err != nil {
		return balance, err
	}
	switch dir {
	case Deposit:
		if balance.Cents > MaxCents-amount.Cents {
			return balance, ErrBalanceLimit
		}
		return balance.Add(amount), nil
	case Withdraw:
		if amount.Cents > balance.Cents {
			return balance, ErrInsufficientBalance
		}
		return balance.Sub(amount), nil
	default:
		return balance, ErrInvalidDirection
	}
}

// Movement describes one balance change before it is recorded.
type Movement struct {
	Amount      Money
	Direction   Direction
	Observation string
	Actor       string
	At          time.Time
	EntryID     string
}

func (mv Movement) entry() HistoryEntry {
	return HistoryEntry{
		ID:          mv.EntryID,
		Type:        mv.Direction,
		Amount:      mv.Amount,
		Date:        mv.At,
		Observation: mv.Observation,
		Actor:       mv.Actor,
	}
}

// Apply moves the goal balance and appends the matching history entry.
// On error the goal is left untouched.
func (g *Goal) Apply(mv Movement) error {
	next, err := Move(g.CurrentAmount, mv.Amount, mv.Direction)
	if err != nil {
		return err
	}
	g.CurrentAmount = next
	g.History = append(g.History, mv.entry())
	return nil
}

// Apply moves the savings balance and appends the matching history entry.
// On error the record is left untouched.
func (s *Savings) Apply(mv Movement) error {
	next, err := Move(s.Amount, mv.Amount, mv.Direction)
	if err != nil {
		return err
	}
	s.Amount = next
	s.History = append(s.History, mv.entry())
	return nil
}
