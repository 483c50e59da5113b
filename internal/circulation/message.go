package circulation

import (
	"fmt"
	"strings"
)

// Message is user-facing text in both supported languages.
type Message struct {
	ES string `json:"es"`
	EN string `json:"en"`
}

func NoActiveRulesMessage() Message {
	return Message{
		ES: "Esta ciudad no tiene reglas activas. Puedes circular libremente.",
		EN: "This city has no active rules. You may circulate freely.",
	}
}

func NoRestrictionsMessage(day Weekday) Message {
	return Message{
		ES: fmt.Sprintf("No hay restricciones el día %s.", day.Spanish()),
		EN: fmt.Sprintf("There are no restrictions on %s.", day.English()),
	}
}

func RestrictedWindowMessage(rule Rule) Message {
	digits := joinDigits(rule.RestrictedDigits)
	return Message{
		ES: fmt.Sprintf("NO puedes circular entre las %s y %s. Dígitos restringidos: %s.", rule.Start, rule.End, digits),
		EN: fmt.Sprintf("You CANNOT circulate between %s and %s. Restricted digits: %s.", rule.Start, rule.End, digits),
	}
}

func AllowedMessage() Message {
	return Message{
		ES: "Puedes circular en esta fecha y hora.",
		EN: "You are allowed to circulate at this date and time.",
	}
}

func PlateNotRestrictedMessage(day Weekday) Message {
	return Message{
		ES: fmt.Sprintf("Tu placa no está restringida el día %s.", day.Spanish()),
		EN: fmt.Sprintf("Your plate is NOT restricted on %s.", day.English()),
	}
}

func RestrictedDayMessage(rule Rule) Message {
	digits := joinDigits(rule.RestrictedDigits)
	return Message{
		ES: fmt.Sprintf("NO puedes circular de %s a %s. Dígitos: %s.", rule.Start, rule.End, digits),
		EN: fmt.Sprintf("You CANNOT circulate from %s to %s. Digits: %s.", rule.Start, rule.End, digits),
	}
}

func joinDigits(digits []string) string {
	return strings.Join(digits, ", ")
}
