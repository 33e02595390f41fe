package funnel

import (
	"regexp"
	"strings"

	"github.com/ManuelReschke/MemberGate/app/models"
)

// DefaultLeadName is used when no answer looks like a name.
const DefaultLeadName = "New Lead"

// Role tags a questionnaire page with the lead field it collects.
type Role string

const (
	RoleName  Role = "name"
	RoleEmail Role = "email"
	RolePhone Role = "phone"
)

var (
	phonePattern = regexp.MustCompile(`^[\d\+\-\s\(\)]{7,15}$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
	digitPattern = regexp.MustCompile(`\d`)
)

// Lead is the contact record derived from questionnaire answers.
type Lead struct {
	Name  string
	Email string
	Phone string
}

// RolesFromPages maps page keys to roles using the page kind.
func RolesFromPages(pages []models.QuestionnairePage) map[string]Role {
	roles := make(map[string]Role)
	for _, p := range pages {
		switch p.Kind {
		case models.PAGE_KIND_NAME:
			roles[p.PageKey] = RoleName
		case models.PAGE_KIND_EMAIL:
			roles[p.PageKey] = RoleEmail
		case models.PAGE_KIND_NUMBER:
			roles[p.PageKey] = RolePhone
		}
	}
	return roles
}

// DeriveLead extracts name, email and phone. Answers on role tagged pages
// win; untagged string answers are classified by the shape of their value.
func DeriveLead(answers Answers, roles map[string]Role, explicitName string) Lead {
	var tagged, guessed Lead

	for _, ans := range answers {
		value := strings.TrimSpace(valueText(ans.Value))
		if value == "" {
			continue
		}

		if role, ok := roles[ans.Key]; ok {
			switch role {
			case RoleName:
				tagged.Name = value
			case RoleEmail:
				tagged.Email = value
			case RolePhone:
				tagged.Phone = value
			}
			continue
		}

		// only free text answers are classified by shape
		if _, ok := ans.Value.(string); !ok {
			continue
		}
		switch {
		case looksLikeEmail(value):
			guessed.Email = value
		case looksLikePhone(value):
			guessed.Phone = value
		case guessed.Name == "" && namePattern.MatchString(value):
			guessed.Name = value
		}
	}

	lead := Lead{
		Name:  firstNonEmpty(strings.TrimSpace(explicitName), tagged.Name, guessed.Name, DefaultLeadName),
		Email: firstNonEmpty(tagged.Email, guessed.Email),
		Phone: firstNonEmpty(tagged.Phone, guessed.Phone),
	}
	return lead
}

func looksLikeEmail(v string) bool {
	return strings.Contains(v, "@") && strings.Contains(v, ".")
}

func looksLikePhone(v string) bool {
	return phonePattern.MatchString(v) && digitPattern.MatchString(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
