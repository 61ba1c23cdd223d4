package relations

import (
	"strings"

	"github.com/suPer8Hu/kinfolk/internal/models"
)

func byGender(g models.Gender, male, female, other string) string {
	switch g {
	case models.GenderMale:
		return male
	case models.GenderFemale:
		return female
	}
	return other
}

func ancestorLabel(gen int, side Side, viaMother bool) string {
	switch {
	case gen == 0:
		return "Self"
	case gen == 1 && viaMother:
		return "Mother"
	case gen == 1:
		return "Father"
	}
	base := "Grandfather"
	if viaMother {
		base = "Grandmother"
	}
	return string(side) + " " + strings.Repeat("Great-", gen-2) + base
}

func greatDegree(gen int) int {
	if gen < 2 {
		return 0
	}
	return gen - 1
}

func descendantLabel(gen int, g models.Gender) string {
	if gen == 1 {
		return byGender(g, "Son", "Daughter", "Child")
	}
	return strings.Repeat("Great-", gen-2) + byGender(g, "Grandson", "Granddaughter", "Grandchild")
}

func siblingLabel(g models.Gender, half bool) string {
	label := byGender(g, "Brother", "Sister", "Sibling")
	if half {
		return "Half-" + label
	}
	return label
}

func auntUncleLabel(side Side, g models.Gender) string {
	return string(side) + " " + byGender(g, "Uncle", "Aunt", "Aunt/Uncle")
}

func cousinLabel(side Side) string {
	return string(side) + " First Cousin"
}

func nieceNephewLabel(g models.Gender) string {
	return byGender(g, "Nephew", "Niece", "Niece/Nephew")
}
