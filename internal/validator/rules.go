package validator

import (
	"errors"
	"net/url"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/amoylab/oauthprobe/internal/common/cnst"
	"github.com/amoylab/oauthprobe/internal/common/errorx"
)

// Message ids attached to field errors
const (
	MsgRequired              = "ValidationRequired"
	MsgLength                = "ValidationLength"
	MsgURI                   = "ValidationURI"
	MsgMinItems              = "ValidationMinItems"
	MsgMaxItems              = "ValidationMaxItems"
	MsgOneOf                 = "ValidationOneOf"
	MsgPattern               = "ValidationPattern"
	MsgScope                 = "ValidationScope"
	MsgGrantResponseMismatch = "ValidationGrantResponseMismatch"
)

const (
	maxScopeTokens = 10
	maxScopeLen    = 50
)

var (
	tokenPattern        = regexp.MustCompile(`^\w+$`)
	credentialPattern   = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)
	providerNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	scopeTokenPattern   = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
)

var (
	engineOnce sync.Once
	engine     *validator.Validate
)

// Engine returns the shared validator with the form rules registered.
// Struct fields are reported under their form tag names.
func Engine() *validator.Validate {
	engineOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		mustRegister(v, "absuri", func(fl validator.FieldLevel) bool {
			return isAbsoluteURI(fl.Field().String())
		})
		mustRegister(v, "token", matches(tokenPattern))
		mustRegister(v, "credential", matches(credentialPattern))
		mustRegister(v, "providername", matches(providerNamePattern))
		mustRegister(v, "scope", func(fl validator.FieldLevel) bool {
			return validScope(fl.Field().String())
		})
		v.RegisterStructValidation(grantResponseLevel, RegistrationForm{})
		engine = v
	})
	return engine
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// grantResponseLevel checks that every declared grant agrees with the
// response type. It stays quiet while either side is still invalid so the
// field rules report first.
func grantResponseLevel(sl validator.StructLevel) {
	f := sl.Current().Interface().(RegistrationForm)
	rt := cnst.ResponseType(f.ResponseType)
	if !oneOfResponseTypes(rt) {
		return
	}
	grants := make([]cnst.GrantType, 0, len(f.GrantTypes))
	for _, raw := range f.GrantTypes {
		g, err := cnst.ParseGrantType(raw)
		if err != nil {
			return
		}
		grants = append(grants, g)
	}
	for _, g := range grants {
		if want, ok := cnst.RequiredResponseType(g); ok && want != rt {
			sl.ReportError(f.ResponseType, "response_type", "ResponseType", "grantresponse", string(g))
			return
		}
	}
}

func oneOfResponseTypes(rt cnst.ResponseType) bool {
	for _, r := range cnst.ResponseTypes {
		if r == rt {
			return true
		}
	}
	return false
}

func validScope(scope string) bool {
	tokens := strings.Fields(scope)
	if len(tokens) > maxScopeTokens {
		return false
	}
	for _, tok := range tokens {
		if len(tok) > maxScopeLen || !scopeTokenPattern.MatchString(tok) {
			return false
		}
	}
	return true
}

// isAbsoluteURI accepts absolute URIs; http and https ones also need a host
func isAbsoluteURI(value string) bool {
	if strings.ContainsAny(value, " \t\r\n") {
		return false
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	default:
		return u.Opaque != "" || u.Host != "" || u.Path != ""
	}
}

// check runs the engine over form and converts the result into an
// *errorx.ValidationError, one entry per field in struct order.
func check(form any) error {
	err := Engine().Struct(form)
	if err == nil {
		return nil
	}
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return err
	}
	typ := reflect.TypeOf(form)
	if typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	ve := &errorx.ValidationError{}
	for _, fe := range fes {
		field := fieldName(fe.Field())
		if ve.Has(field) {
			continue
		}
		msg, data := message(typ, fe)
		ve.Add(field, msg, data)
	}
	return ve.OrNil()
}

// fieldName drops the element index dive adds, redirect_uris[2] -> redirect_uris
func fieldName(name string) string {
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

func message(typ reflect.Type, fe validator.FieldError) (string, map[string]any) {
	switch fe.Tag() {
	case "required":
		return MsgRequired, nil
	case "min", "max":
		if fe.Kind() == reflect.Slice {
			if fe.Tag() == "min" {
				return MsgMinItems, map[string]any{"Min": atoi(fe.Param())}
			}
			return MsgMaxItems, map[string]any{"Max": atoi(fe.Param())}
		}
		min, max := lengthBounds(typ, fe.StructField())
		return MsgLength, map[string]any{"Min": min, "Max": max}
	case "absuri":
		return MsgURI, nil
	case "oneof":
		return MsgOneOf, map[string]any{"Allowed": strings.Join(strings.Fields(fe.Param()), ", ")}
	case "scope":
		return MsgScope, map[string]any{"Max": maxScopeTokens, "MaxLen": maxScopeLen}
	case "grantresponse":
		want, _ := cnst.RequiredResponseType(cnst.GrantType(fe.Param()))
		return MsgGrantResponseMismatch, map[string]any{"Grant": fe.Param(), "ResponseType": string(want)}
	default:
		return MsgPattern, nil
	}
}

// lengthBounds reads both min and max off the field's tag so a length
// message can name the full range whichever bound failed.
func lengthBounds(typ reflect.Type, structField string) (int, int) {
	min, max := 0, 0
	sf, ok := typ.FieldByName(structField)
	if !ok {
		return min, max
	}
	for _, rule := range strings.Split(sf.Tag.Get("validate"), ",") {
		k, v, _ := strings.Cut(rule, "=")
		switch k {
		case "min":
			min = atoi(v)
		case "max":
			max = atoi(v)
		}
	}
	return min, max
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// splitList splits every value on sep, trims the parts and drops empty ones
func splitList(values []string, sep string) []string {
	var out []string
	for _, raw := range values {
		for _, part := range strings.Split(raw, sep) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
