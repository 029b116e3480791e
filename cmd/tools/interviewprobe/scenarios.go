package main

import "sort"

// scenario is a scripted applicant and the visa it should end up with.
type scenario struct {
	Name      string
	Answers   map[string]string
	Want      string
	Ambiguous bool
}

var scenarios = map[string]scenario{
	"b1": {
		Answers: map[string]string{"purpose": "business", "employerSponsor": "no", "treatyCountry": "no"},
		Want:    "B-1",
	},
	"b2": {
		Answers: map[string]string{"purpose": "tourism"},
		Want:    "B-2",
	},
	"e1": {
		Answers: map[string]string{"purpose": "business", "employerSponsor": "no", "treatyCountry": "yes", "tradeActivity": "yes"},
		Want:    "E-1",
	},
	"e2": {
		Answers: map[string]string{
			"purpose": "business", "employerSponsor": "no", "treatyCountry": "yes",
			"tradeActivity": "no", "investment": "yes",
		},
		Want: "E-2",
	},
	"h1b": {
		Answers: map[string]string{
			"purpose": "employment", "employerSponsor": "yes", "workType": "professional",
			"sameCompany": "no", "extraordinaryAbility": "no", "permanentIntent": "no", "australian": "no",
		},
		Want: "H-1B",
	},
	"l1a": {
		Answers: map[string]string{
			"purpose": "employment", "employerSponsor": "yes", "workType": "professional",
			"sameCompany": "yes", "managerial": "yes",
		},
		Want: "L-1A",
	},
	"transit-crew": {
		Answers: map[string]string{"purpose": "transit", "crewMember": "yes"},
		Want:    "C-1/D",
	},
	"transit-official": {
		Answers: map[string]string{"purpose": "transit", "crewMember": "no", "isUNRelated": "no", "governmentOfficial": "yes"},
		Want:    "C-3",
	},
	"a3": {
		Answers: map[string]string{"purpose": "diplomatic", "internationalOrg": "no", "diplomat": "no", "governmentOfficial": "no"},
		Want:    "A-3",
	},
	"adoption": {
		Answers:   map[string]string{"purpose": "adoption", "adoptionCompleted": "in_process"},
		Want:      "IR-3",
		Ambiguous: true,
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupScenario(name string) (scenario, bool) {
	sc, ok := scenarios[name]
	sc.Name = name
	return sc, ok
}
