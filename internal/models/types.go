package models

// QuestionType is the closed set of question kinds a survey can hold.
type QuestionType string

const (
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionRating         QuestionType = "rating"
)

// Rating questions are answered on a fixed 1..5 scale.
const (
	RatingMin = 1
	RatingMax = 5
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{QuestionText, QuestionMultipleChoice, QuestionRating}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionMultipleChoice, QuestionRating:
		return true
	}
	return false
}

// Question is a single prompt inside a survey. Options only carry meaning
// for multiple_choice questions.
type Question struct {
	ID      string       `json:"id"`
	Type    QuestionType `json:"type"`
	Text    string       `json:"text"`
	Options []string     `json:"options,omitempty"`
}

// Survey is a titled, ordered collection of questions.
type Survey struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Questions      []Question `json:"questions"`
	ExpirationDate string     `json:"expiration_date,omitempty"` // calendar date, e.g. 2023-12-31
}

// Clone returns a deep copy; stores hand these out so callers never alias stored slices.
func (s Survey) Clone() Survey {
	out := s
	if s.Questions != nil {
		out.Questions = make([]Question, len(s.Questions))
		for i, q := range s.Questions {
			out.Questions[i] = q
			if q.Options != nil {
				out.Questions[i].Options = append([]string(nil), q.Options...)
			}
		}
	}
	return out
}

// QuestionIndex returns the position of the question with the given id, or -1.
func (s Survey) QuestionIndex(id string) int {
	for i, q := range s.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

// Role is the closed set of user roles.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleCreator    Role = "creator"
	RoleRespondent Role = "respondent"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCreator, RoleRespondent:
		return true
	}
	return false
}

// User is created on (simulated) login or registration and lives only as long as the process.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
