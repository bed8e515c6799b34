package profiles

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field limits enforced by Validate.
const (
	MaxNameLength        = 50
	MaxBioLength         = 500
	MaxCustomFields      = 20
	MaxCustomKeyLength   = 40
	MaxCustomValueLength = 500
	MaxSkills            = 30
)

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// ValidationErrors is returned when a profile fails validation.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, ", ")
}

// First returns the first message, for clients that show a single alert.
func (v ValidationErrors) First() string {
	if len(v) == 0 {
		return ""
	}
	return v[0].Message
}

// customFieldRules mirrors CustomField for validation purposes.
type customFieldRules struct {
	Key        string `json:"key" validate:"required,max=40"`
	Value      string `json:"value" validate:"max=500"`
	Visibility string `json:"visibility" validate:"omitempty,vfvisibility"`
}

// profileRules is the flattened shape Validate checks.
type profileRules struct {
	FirstName         string             `json:"first_name" validate:"max=50"`
	LastName          string             `json:"last_name" validate:"max=50"`
	DisplayName       string             `json:"display_name" validate:"max=50"`
	Username          string             `json:"username" validate:"omitempty,min=3,max=30,vfusername,vfunreserved"`
	Email             string             `json:"email" validate:"omitempty,email"`
	Phone             string             `json:"phone" validate:"omitempty,vfphone"`
	Location          string             `json:"location" validate:"max=100"`
	Country           string             `json:"country" validate:"omitempty,vfcountry"`
	Bio               string             `json:"bio" validate:"max=500"`
	Website           string             `json:"website" validate:"omitempty,vfurl"`
	JobTitle          string             `json:"job_title" validate:"max=100"`
	Company           string             `json:"company" validate:"max=100"`
	Industry          string             `json:"industry" validate:"max=100"`
	YearsOfExperience int                `json:"years_of_experience" validate:"min=0,max=80"`
	Skills            []string           `json:"skills" validate:"max=30,dive,required,max=50"`
	Twitter           string             `json:"twitter" validate:"omitempty,vfurl"`
	LinkedIn          string             `json:"linkedin" validate:"omitempty,vfurl"`
	GitHub            string             `json:"github" validate:"omitempty,vfurl"`
	Instagram         string             `json:"instagram" validate:"omitempty,vfurl"`
	Facebook          string             `json:"facebook" validate:"omitempty,vfurl"`
	YouTube           string             `json:"youtube" validate:"omitempty,vfurl"`
	CustomFields      []customFieldRules `json:"custom_fields" validate:"max=20,unique=Key,dive"`
}

var labels = map[string]string{
	"first_name":          "First name",
	"last_name":           "Last name",
	"display_name":        "Display name",
	"username":            "Username",
	"email":               "Email",
	"phone":               "Phone number",
	"location":            "Location",
	"country":             "Country",
	"bio":                 "Bio",
	"website":             "Website",
	"job_title":           "Job title",
	"company":             "Company",
	"industry":            "Industry",
	"years_of_experience": "Years of experience",
	"skills":              "Skills",
	"twitter":             "Twitter",
	"linkedin":            "LinkedIn",
	"github":              "GitHub",
	"instagram":           "Instagram",
	"facebook":            "Facebook",
	"youtube":             "YouTube",
	"custom_fields":       "Custom fields",
	"key":                 "Custom field key",
	"value":               "Custom field value",
	"visibility":          "Custom field visibility",
}

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9_.]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9 ()\-]{7,20}$`)

	// Usernames that collide with fixed segments under /api/v1/profiles/.
	reservedUsernames = map[string]bool{"search": true}

	countriesOnce sync.Once
	countries     *gountries.Query

	validate = newValidator()
)

func countryQuery() *gountries.Query {
	countriesOnce.Do(func() {
		countries = gountries.New()
	})
	return countries
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// prefix vf = validate format
	v.RegisterValidation("vfurl", func(fl validator.FieldLevel) bool {
		return IsValidURL(fl.Field().String())
	})
	v.RegisterValidation("vfphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("vfusername", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	v.RegisterValidation("vfunreserved", func(fl validator.FieldLevel) bool {
		return !reservedUsernames[fl.Field().String()]
	})
	v.RegisterValidation("vfcountry", func(fl validator.FieldLevel) bool {
		_, err := countryQuery().FindCountryByAlpha(fl.Field().String())
		return err == nil
	})
	v.RegisterValidation("vfvisibility", func(fl validator.FieldLevel) bool {
		return Visibility(fl.Field().String()).Valid()
	})
	return v
}

// IsValidURL reports whether s parses as an absolute http(s) URL with a host.
func IsValidURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// CountryName returns the common English name for an ISO alpha-2 code.
func CountryName(code string) (string, bool) {
	c, err := countryQuery().FindCountryByAlpha(code)
	if err != nil {
		return "", false
	}
	return c.Name.Common, true
}

// Validate checks every user-editable field of the profile.
func Validate(p *Profile) error {
	prof := p.Professional.Data()
	links := p.SocialLinks.Data()

	rules := profileRules{
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		DisplayName:       p.DisplayName,
		Username:          p.UsernameOrEmpty(),
		Email:             p.Email,
		Phone:             p.Phone,
		Location:          p.Location,
		Country:           p.Country,
		Bio:               p.Bio,
		Website:           p.Website,
		JobTitle:          prof.JobTitle,
		Company:           prof.Company,
		Industry:          prof.Industry,
		YearsOfExperience: prof.YearsOfExperience,
		Skills:            prof.Skills,
		Twitter:           links.Twitter,
		LinkedIn:          links.LinkedIn,
		GitHub:            links.GitHub,
		Instagram:         links.Instagram,
		Facebook:          links.Facebook,
		YouTube:           links.YouTube,
	}
	for _, f := range p.Fields() {
		rules.CustomFields = append(rules.CustomFields, customFieldRules{
			Key:        f.Key,
			Value:      f.Value,
			Visibility: string(f.Visibility),
		})
	}

	return validateStruct(rules)
}

// ValidatePrivacySettings rejects unknown visibility values.
func ValidatePrivacySettings(s PrivacySettings) error {
	var errs ValidationErrors
	check := func(field string, v Visibility) {
		if v != "" && !v.Valid() {
			errs = append(errs, FieldError{
				Field:   field,
				Message: fmt.Sprintf("%s must be one of public, friends or private", field),
			})
		}
	}
	check("profile_visibility", s.ProfileVisibility)
	check("email", s.Email)
	check("phone", s.Phone)
	check("location", s.Location)
	check("bio", s.Bio)
	check("professional", s.Professional)
	check("social_links", s.SocialLinks)
	check("custom_fields", s.CustomFields)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStruct(in any) error {
	if err := validate.Struct(in); err != nil {
		var valErrs validator.ValidationErrors
		if !errors.As(err, &valErrs) {
			return err
		}

		errs := make(ValidationErrors, 0, len(valErrs))
		for _, valErr := range valErrs {
			errs = append(errs, buildFieldError(valErr))
		}
		return errs
	}
	return nil
}

func buildFieldError(f validator.FieldError) FieldError {
	path := f.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	label, ok := labels[f.Field()]
	if !ok {
		label = f.Field()
	}
	return FieldError{Field: path, Message: messageFor(f, label)}
}

func messageFor(f validator.FieldError, label string) string {
	switch f.Tag() {
	case "email":
		return "Please enter a valid email address"
	case "vfurl":
		return fmt.Sprintf("%s must be a valid URL", label)
	case "vfphone":
		return "Please enter a valid phone number"
	case "vfusername":
		return "Username may only contain lowercase letters, numbers, dots and underscores"
	case "vfunreserved":
		return "This username is reserved"
	case "vfcountry":
		return "Country must be a valid ISO country code"
	case "vfvisibility":
		return fmt.Sprintf("%s must be one of public, friends or private", label)
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "unique":
		return "Custom field keys must be unique"
	case "min":
		if f.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, f.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, f.Param())
	case "max":
		switch f.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be %s characters or less", label, f.Param())
		case reflect.Slice:
			return fmt.Sprintf("%s must have at most %s entries", label, f.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, f.Param())
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// titleName upper-cases the first letter of each word. Casers keep state, so
// one is built per call.
func titleName(s string) string {
	return cases.Title(language.Und, cases.NoLower).String(strings.TrimSpace(s))
}

// Normalize trims user input and canonicalizes case-insensitive fields.
func Normalize(p *Profile) {
	p.FirstName = titleName(p.FirstName)
	p.LastName = titleName(p.LastName)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Location = strings.TrimSpace(p.Location)
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.Bio = strings.TrimSpace(p.Bio)
	p.Website = strings.TrimSpace(p.Website)
	if p.Username != nil {
		u := strings.ToLower(strings.TrimSpace(*p.Username))
		if u == "" {
			p.Username = nil
		} else {
			p.Username = &u
		}
	}
}
