// Package validation checks gateway settings: struct tags through
// go-playground/validator, plus a Checker that collects the cross-field
// problems so they can be reported together.
package validation

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

var subscriptionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

var (
	tagsOnce sync.Once
	tags     *validator.Validate
)

// tagValidator is built once; validator caches struct metadata per instance.
func tagValidator() *validator.Validate {
	tagsOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(settingName)
		v.RegisterValidation("redirect_target", func(fl validator.FieldLevel) bool {
			return IsRedirectTarget(fl.Field().String())
		})
		v.RegisterValidation("subscription_name", func(fl validator.FieldLevel) bool {
			return IsSubscriptionName(fl.Field().String())
		})
		v.RegisterValidation("schedule", func(fl validator.FieldLevel) bool {
			spec := fl.Field().String()
			return spec == "off" || IsCronExpression(spec)
		})
		tags = v
	})
	return tags
}

// settingName names a field by its env variable, then its json key.
func settingName(f reflect.StructField) string {
	if env := f.Tag.Get("env"); env != "" {
		return env
	}
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return f.Name
}

// tagProblems validates s against its `validate` tags and describes each failure.
func tagProblems(s interface{}) []string {
	err := tagValidator().Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = describe(fe)
	}
	return out
}

var tagMessages = map[string]string{
	"required":          "%[1]s is required",
	"required_with":     "%[1]s is required when %[2]s is set",
	"url":               "%[1]s must be a valid URL",
	"min":               "%[1]s must be at least %[2]s",
	"max":               "%[1]s must be at most %[2]s",
	"oneof":             "%[1]s must be one of: %[2]s",
	"redirect_target":   "%[1]s must be an absolute URL or a path starting with '/'",
	"subscription_name": "%[1]s contains an invalid subscription name",
	"schedule":          `%[1]s must be "off" or a cron expression`,
}

func describe(fe validator.FieldError) string {
	if format, ok := tagMessages[fe.Tag()]; ok {
		return fmt.Sprintf(format, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
}

// IsCronExpression reports whether spec parses as a standard five-field cron
// expression or a descriptor ("@hourly", "@every 30m").
func IsCronExpression(spec string) bool {
	_, err := cron.ParseStandard(spec)
	return err == nil
}

// IsRedirectTarget reports whether target is an absolute http(s) URL or a
// local path. Protocol-relative "//host" paths are rejected.
func IsRedirectTarget(target string) bool {
	if strings.HasPrefix(target, "/") {
		return !strings.HasPrefix(target, "//")
	}
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsSubscriptionName reports whether name can be used as a webhook subscription name
func IsSubscriptionName(name string) bool {
	return subscriptionNamePattern.MatchString(name)
}
