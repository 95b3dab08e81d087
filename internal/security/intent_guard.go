package security

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// RejectionMessage is the fixed user-facing text for out-of-domain
// questions. It never varies, so callers cannot infer backend state from
// rejection text.
const RejectionMessage = "Please enter a query related to the system's database " +
	"(employees, inventory, production, or sales)."

// Classifier is the external binary yes/no escalation used when the keyword
// scan is inconclusive. Any error is treated as a rejection.
type Classifier interface {
	Classify(ctx context.Context, question string) (bool, error)
}

// domainKeywords strongly indicate in-domain questions. Combined into a
// single compiled regex so match cost is independent of keyword count.
var domainKeywords = []string{
	// HR / Employees
	`employee`, `staff`, `worker`, `salary`, `salaries`, `hire`,
	`designation`, `manager`, `department`, `dept`,
	// Attendance / Leave
	`attendance`, `present`, `absent`, `late`, `check.?in`,
	`check.?out`, `leave`, `sick`, `casual`, `annual`, `maternity`,
	`half.?day`, `hours.?worked`,
	// Inventory / Suppliers
	`inventory`, `stock`, `material`, `raw.?material`, `fabric`,
	`supplier`, `reorder`, `quantity`, `cost.?per.?unit`,
	// Products / Production
	`product`, `production`, `manufacturing`, `order`,
	`target.?quantity`, `completed`, `stitching`, `cutting`,
	`product.?code`, `category`,
	// Sales
	`sale`, `sales`, `revenue`, `customer`, `total.?amount`,
	`selling.?price`,
	// Generic reporting verbs (safe)
	`count`, `average`, `sum`, `total`, `maximum`, `minimum`,
	`highest`, `lowest`, `top`, `bottom`, `list`, `show`,
	`display`, `report`, `how many`, `which`,
}

var domainPattern = regexp.MustCompile(`(?i)` + strings.Join(domainKeywords, "|"))

// IntentVerdict is the admission decision for one question.
type IntentVerdict struct {
	Accepted         bool
	RejectionMessage string
}

// IntentGuard decides whether a question is in-scope before any SQL is
// generated. Keyword scan first; escalation to the classifier only when the
// scan is inconclusive. Fail-closed: classifier errors reject.
type IntentGuard struct {
	classifier Classifier
}

func NewIntentGuard(classifier Classifier) *IntentGuard {
	return &IntentGuard{classifier: classifier}
}

// Admit classifies a question as in-domain or out-of-domain.
func (g *IntentGuard) Admit(ctx context.Context, question string) IntentVerdict {
	if domainPattern.MatchString(question) {
		log.Debug().Msg("intent guard: pass (keyword match)")
		return IntentVerdict{Accepted: true}
	}

	if g.classifier != nil {
		log.Debug().Msg("intent guard: keyword scan inconclusive, escalating")
		ok, err := g.classifier.Classify(ctx, question)
		if err != nil {
			log.Warn().Err(err).Msg("intent guard: classifier failed, rejecting by default")
		} else if ok {
			return IntentVerdict{Accepted: true}
		}
	}

	return IntentVerdict{Accepted: false, RejectionMessage: RejectionMessage}
}
