package onboard

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// phoneRegion anchors parsing of numbers submitted without a country
// prefix.
const phoneRegion = "US"

// Validate runs validation rules for the profile payload.
func (p InstructorProfile) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Bio, validation.Required, validation.Length(1, 2000)),
		validation.Field(&p.Expertise, validation.Required),
		validation.Field(&p.Experience, validation.Required, validation.In(experienceValues()...)),
		validation.Field(&p.Education, validation.Required),
		validation.Field(&p.Phone, validation.By(validPhoneNumber)),
		validation.Field(&p.LinkedInURL, is.URL),
		validation.Field(&p.GitHubURL, is.URL),
		validation.Field(&p.PortfolioURL, is.URL),
	)
}

func experienceValues() []any {
	levels := ExperienceLevels()
	values := make([]any, len(levels))
	for i, l := range levels {
		values[i] = l
	}
	return values
}

func validPhoneNumber(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, phoneRegion)
	if err != nil {
		return errors.New("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number")
	}

	return nil
}
