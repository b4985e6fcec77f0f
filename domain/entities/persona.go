package entities

// Persona is a selectable role-play character the agent plays during a session
type Persona struct {
	ID          string `json:"id" yaml:"id" validate:"required"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	Market      string `json:"market" yaml:"market"`
	Description string `json:"description" yaml:"description"`
	Prompt      string `json:"prompt" yaml:"prompt" validate:"required"`
	Voice       string `json:"voice" yaml:"voice" validate:"required,startswith=aura-"`
}
