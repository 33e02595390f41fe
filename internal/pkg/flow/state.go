package flow

// State is the visitor's position in the enrollment funnel. States are
// ordered; later states imply the earlier ones.
type State int

const (
	Anonymous State = iota
	ReferralAccepted
	QuestionnaireComplete
	Registered
)

var stateNames = map[State]string{
	Anonymous:             "anonymous",
	ReferralAccepted:      "referral_accepted",
	QuestionnaireComplete: "questionnaire_complete",
	Registered:            "registered",
}

// Pages each state belongs on.
const (
	SignupPage            = "/signup"
	QuestionnairePage     = "/questionnaire"
	PostQuestionnairePage = "/post-questionnaire"
	RegisterPage          = "/register"
	MemberPage            = "/privatehome"
)

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return stateNames[Anonymous]
}

// ParseState maps a stored name back to a state; unknown names are Anonymous.
func ParseState(name string) State {
	for s, n := range stateNames {
		if n == name {
			return s
		}
	}
	return Anonymous
}

// Home is the page a visitor in state s is sent to.
func (s State) Home() string {
	switch s {
	case ReferralAccepted:
		return QuestionnairePage
	case QuestionnaireComplete:
		return PostQuestionnairePage
	case Registered:
		return MemberPage
	}
	return SignupPage
}
