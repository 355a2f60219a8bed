package area

import "testing"

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		input    Input
		expected Area
	}{
		{
			name: "checkpoint geography wins over free text",
			input: Input{
				EndCheckpoint:   &Geography{Country: "Sri Lanka", State: "Western"},
				DestinationArea: "Berlin, Germany",
			},
			expected: Area{Country: "Sri Lanka", State: "Western"},
		},
		{
			name: "start checkpoint used when end has no geography",
			input: Input{
				StartCheckpoint: &Geography{Country: "India", State: "Kerala"},
				EndCheckpoint:   &Geography{},
			},
			expected: Area{Country: "India", State: "Kerala"},
		},
		{
			name: "checkpoint with country but no state",
			input: Input{
				EndCheckpoint: &Geography{Country: "Singapore"},
			},
			expected: Area{Country: "Singapore", State: Unknown},
		},
		{
			// The documented first/last-token quirk: the middle token is dropped.
			name: "free text three tokens",
			input: Input{
				DestinationArea: "Colombo, Western, Sri Lanka",
			},
			expected: Area{Country: "Sri Lanka", State: "Colombo"},
		},
		{
			name: "free text two tokens",
			input: Input{
				DestinationArea: "Berlin, Germany",
			},
			expected: Area{Country: "Germany", State: "Berlin"},
		},
		{
			name: "free text single token is country-ish",
			input: Input{
				DestinationArea: "Germany",
			},
			expected: Area{Country: "Germany", State: Unknown},
		},
		{
			name: "origin text used when destination empty",
			input: Input{
				OriginArea: "Dhaka, Bangladesh",
			},
			expected: Area{Country: "Bangladesh", State: "Dhaka"},
		},
		{
			name: "whitespace-only tokens ignored",
			input: Input{
				DestinationArea: " , , ",
			},
			expected: Area{Country: Unknown, State: Unknown},
		},
		{
			name:     "nothing resolvable",
			input:    Input{},
			expected: Area{Country: Unknown, State: Unknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.input)
			if got != tt.expected {
				t.Errorf("Resolve() = %+v, expected %+v", got, tt.expected)
			}
		})
	}
}
