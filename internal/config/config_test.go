package config

import (
	"fmt"
	"testing"
)

type tagTest struct {
	args      []string
	condition string
	satisfied bool
}

func TestTagSatisfaction(t *testing.T) {
	tests := []*tagTest{
		{[]string{"DEBUG"}, "DEBUG", true},
		{[]string{"DEBUG"}, "RELEASE", false},
		{[]string{}, "DEBUG", false},
		{[]string{"MODE=fast"}, "MODE", true},
		{[]string{"MODE=fast"}, "MODE=fast", true},
		{[]string{"MODE=fast"}, "MODE=slow", false},
		{[]string{"DEBUG"}, "DEBUG=1", false},
		{[]string{"A", "B=2"}, "B=2", true},
	}

	for _, test := range tests {
		t.Run(fmt.Sprintf("TestTagSatisfaction(%v,%q)", test.args, test.condition), func(t *testing.T) {
			tags := ParseTags(test.args)
			satisfied := tags.Satisfied(test.condition)
			if satisfied != test.satisfied {
				t.Errorf(
					"expected Satisfied(%q) == %v, but got %v",
					test.condition,
					test.satisfied,
					satisfied,
				)
			}
		})
	}
}
