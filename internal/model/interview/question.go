package interview

// QuestionKey identifies a catalog question. The set of keys is closed: the
// catalog must define exactly these and no others.
type QuestionKey string

const (
	KeyPurpose              QuestionKey = "purpose"
	KeyEmployerSponsor      QuestionKey = "employerSponsor"
	KeyWorkType             QuestionKey = "workType"
	KeyTreatyCountry        QuestionKey = "treatyCountry"
	KeyTradeActivity        QuestionKey = "tradeActivity"
	KeyInvestment           QuestionKey = "investment"
	KeySameCompany          QuestionKey = "sameCompany"
	KeyManagerial           QuestionKey = "managerial"
	KeyExtraordinaryAbility QuestionKey = "extraordinaryAbility"
	KeyPermanentIntent      QuestionKey = "permanentIntent"
	KeyAustralian           QuestionKey = "australian"
	KeyAdvancedDegree       QuestionKey = "advancedDegree"
	KeyInvestorCapital      QuestionKey = "investorCapital"
	KeyStudyLevel           QuestionKey = "studyLevel"
	KeyFamilyRelationship   QuestionKey = "familyRelationship"
	KeyUSFamilyStatus       QuestionKey = "usFamilyStatus"
	KeyAdoptionCompleted    QuestionKey = "adoptionCompleted"
	KeyCurrentStatus        QuestionKey = "currentStatus"
	KeyCrewMember           QuestionKey = "crewMember"
	KeyUNRelated            QuestionKey = "isUNRelated"
	KeyInternationalOrg     QuestionKey = "internationalOrg"
	KeyDiplomat             QuestionKey = "diplomat"
	KeyGovernmentOfficial   QuestionKey = "governmentOfficial"
)

var allQuestionKeys = []QuestionKey{
	KeyPurpose,
	KeyEmployerSponsor,
	KeyWorkType,
	KeyTreatyCountry,
	KeyTradeActivity,
	KeyInvestment,
	KeySameCompany,
	KeyManagerial,
	KeyExtraordinaryAbility,
	KeyPermanentIntent,
	KeyAustralian,
	KeyAdvancedDegree,
	KeyInvestorCapital,
	KeyStudyLevel,
	KeyFamilyRelationship,
	KeyUSFamilyStatus,
	KeyAdoptionCompleted,
	KeyCurrentStatus,
	KeyCrewMember,
	KeyUNRelated,
	KeyInternationalOrg,
	KeyDiplomat,
	KeyGovernmentOfficial,
}

// AllQuestionKeys returns every known key.
func AllQuestionKeys() []QuestionKey {
	return append([]QuestionKey(nil), allQuestionKeys...)
}

// Valid reports whether k belongs to the closed key set.
func (k QuestionKey) Valid() bool {
	for _, known := range allQuestionKeys {
		if k == known {
			return true
		}
	}
	return false
}

// AnswerValue is the raw value chosen by the applicant, e.g. "yes".
type AnswerValue string

// QuestionType describes how a question is presented to clients.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "single_choice"
)
