package groupbuy

import (
	"errors"
	"strings"

	"github.com/Knetic/govaluate"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/bid"
)

// Variables available to a bid acceptance rule.
const (
	RuleVarAmount          = "amount"
	RuleVarBasePrice       = "base_price"
	RuleVarParticipants    = "participants"
	RuleVarMinParticipants = "min_participants"
	RuleVarMaxParticipants = "max_participants"
)

// ValidateBidRule checks that a rule parses, only references known variables
// and yields a boolean. An empty rule accepts every bid.
func ValidateBidRule(rule string) error {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return nil
	}
	expr, err := govaluate.NewEvaluableExpression(rule)
	if err != nil {
		return err
	}
	result, err := expr.Evaluate(ruleParams(1, 1, 1, 1, 1))
	if err != nil {
		return err
	}
	if _, ok := result.(bool); !ok {
		return errors.New("bid rule must evaluate to boolean")
	}
	return nil
}

func ruleParams(amount, basePrice int64, participants, minP, maxP int) map[string]interface{} {
	return map[string]interface{}{
		RuleVarAmount:          float64(amount),
		RuleVarBasePrice:       float64(basePrice),
		RuleVarParticipants:    float64(participants),
		RuleVarMinParticipants: float64(minP),
		RuleVarMaxParticipants: float64(maxP),
	}
}

// EvaluateBidRule evaluates the instance's acceptance rule against a bid.
func EvaluateBidRule(inst *Instance, b *bid.Bid) (bool, error) {
	rule := strings.TrimSpace(inst.BidRule)
	if rule == "" {
		return true, nil
	}
	expr, err := govaluate.NewEvaluableExpression(rule)
	if err != nil {
		return false, err
	}
	result, err := expr.Evaluate(ruleParams(b.Amount, inst.Product.BasePrice, inst.CurrentParticipants, inst.MinParticipants, inst.MaxParticipants))
	if err != nil {
		return false, err
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, errors.New("bid rule did not evaluate to boolean")
	}
	return ok, nil
}
