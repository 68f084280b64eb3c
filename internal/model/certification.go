package model

// Certification carries the exam defaults of a provider certification.
type Certification struct {
	Provider                string  `json:"provider"`
	Code                    string  `json:"code"`
	Name                    string  `json:"name"`
	DefaultQuestionCount    int     `json:"default_question_count"`
	DefaultTimeLimitMinutes int     `json:"default_time_limit_minutes"`
	PassingScore            float64 `json:"passing_score"`
}
