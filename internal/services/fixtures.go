package services

import "github.com/soaringjerry/surveyor/internal/models"

// SeedSurveys returns the fixture surveys a fresh store starts with.
func SeedSurveys() []models.Survey {
	return []models.Survey{
		{
			ID:    "1",
			Title: "Customer Satisfaction Survey",
			Questions: []models.Question{
				{ID: "1-1", Type: models.QuestionRating, Text: "How satisfied are you with our product?"},
				{ID: "1-2", Type: models.QuestionText, Text: "What improvements would you suggest for our product?"},
				{
					ID:      "1-3",
					Type:    models.QuestionMultipleChoice,
					Text:    "How likely are you to recommend our product to others?",
					Options: []string{"Very likely", "Somewhat likely", "Neutral", "Unlikely", "Very unlikely"},
				},
			},
			ExpirationDate: "2023-12-31",
		},
		{
			ID:    "2",
			Title: "Employee Engagement Survey",
			Questions: []models.Question{
				{ID: "2-1", Type: models.QuestionRating, Text: "How would you rate your overall job satisfaction?"},
				{
					ID:      "2-2",
					Type:    models.QuestionMultipleChoice,
					Text:    "How often do you receive feedback from your manager?",
					Options: []string{"Weekly", "Monthly", "Quarterly", "Rarely"},
				},
				{ID: "2-3", Type: models.QuestionText, Text: "What would make your work more fulfilling?"},
			},
		},
	}
}
