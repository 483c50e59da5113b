package circulation

// Rule is the evaluation view of an active restriction rule.
type Rule struct {
	ID               string
	Weekday          Weekday
	Start            TimeOfDay
	End              TimeOfDay
	RestrictedDigits []string
}

// Restricts reports whether the plate digit is in the rule's digit set.
func (r Rule) Restricts(lastDigit string) bool {
	for _, d := range r.RestrictedDigits {
		if d == lastDigit {
			return true
		}
	}
	return false
}

// Covers reports whether t falls inside [Start, End]. Both ends are inclusive.
func (r Rule) Covers(t TimeOfDay) bool {
	return t >= r.Start && t <= r.End
}

// Outcome is the decision for one day.
type Outcome struct {
	CanCirculate bool
	Message      Message
	// MatchedRule is the rule quoted in Message, if any.
	MatchedRule *Rule
}

type DayResult struct {
	Outcome
	Weekday Weekday
	// Restrictions holds every rule scheduled that day, in input order.
	Restrictions []Rule
}

type WeekEntry struct {
	Day Weekday
	Outcome
}

// Mode selects single-instant or full-week evaluation.
type Mode interface {
	isMode()
}

type SingleDay struct {
	Weekday Weekday
	Minutes TimeOfDay
}

type FullWeek struct{}

func (SingleDay) isMode() {}
func (FullWeek) isMode()  {}

// Result is the answer to Evaluate. When NoActiveRules is set, only Outcome is
// meaningful; otherwise Day or Week is populated depending on the mode.
type Result struct {
	NoActiveRules bool
	Outcome       Outcome
	Day           *DayResult
	Week          []WeekEntry
}

// Evaluate decides circulation for lastDigit against a city's active rules.
// An empty rule set short-circuits both modes with the "no active rules"
// outcome.
func Evaluate(lastDigit string, rules []Rule, mode Mode) Result {
	if len(rules) == 0 {
		return Result{
			NoActiveRules: true,
			Outcome: Outcome{
				CanCirculate: true,
				Message:      NoActiveRulesMessage(),
			},
		}
	}

	switch m := mode.(type) {
	case SingleDay:
		day := EvaluateDay(lastDigit, rules, m.Weekday, m.Minutes)
		return Result{Outcome: day.Outcome, Day: &day}
	case FullWeek:
		return Result{Week: EvaluateWeek(lastDigit, rules)}
	default:
		// nil mode: nothing to evaluate against
		return Result{Outcome: Outcome{CanCirculate: true, Message: AllowedMessage()}}
	}
}

// EvaluateDay applies the rules scheduled for weekday at the given time. The
// first rule in input order that both restricts the digit and covers the
// time decides the outcome.
func EvaluateDay(lastDigit string, rules []Rule, weekday Weekday, at TimeOfDay) DayResult {
	dayRules := rulesFor(rules, weekday)
	result := DayResult{Weekday: weekday, Restrictions: dayRules}

	if len(dayRules) == 0 {
		result.Outcome = Outcome{CanCirculate: true, Message: NoRestrictionsMessage(weekday)}
		return result
	}

	for i := range dayRules {
		rule := dayRules[i]
		if rule.Restricts(lastDigit) && rule.Covers(at) {
			result.Outcome = Outcome{
				CanCirculate: false,
				Message:      RestrictedWindowMessage(rule),
				MatchedRule:  &rule,
			}
			return result
		}
	}

	result.Outcome = Outcome{CanCirculate: true, Message: AllowedMessage()}
	return result
}

// EvaluateWeek reports, for each weekday, whether any rule restricts the digit
// that day. Time of day is ignored.
func EvaluateWeek(lastDigit string, rules []Rule) []WeekEntry {
	days := Weekdays()
	week := make([]WeekEntry, 0, len(days))

	for _, day := range days {
		dayRules := rulesFor(rules, day)
		entry := WeekEntry{Day: day}

		switch match := firstRestricting(dayRules, lastDigit); {
		case len(dayRules) == 0:
			entry.Outcome = Outcome{CanCirculate: true, Message: NoRestrictionsMessage(day)}
		case match == nil:
			entry.Outcome = Outcome{CanCirculate: true, Message: PlateNotRestrictedMessage(day)}
		default:
			entry.Outcome = Outcome{
				CanCirculate: false,
				Message:      RestrictedDayMessage(*match),
				MatchedRule:  match,
			}
		}

		week = append(week, entry)
	}

	return week
}

func rulesFor(rules []Rule, day Weekday) []Rule {
	var out []Rule
	for _, r := range rules {
		if r.Weekday == day {
			out = append(out, r)
		}
	}
	return out
}

func firstRestricting(rules []Rule, lastDigit string) *Rule {
	for i := range rules {
		if rules[i].Restricts(lastDigit) {
			r := rules[i]
			return &r
		}
	}
	return nil
}
