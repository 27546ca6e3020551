// Package handler provides the HTTP handlers of the Calixo API.
// Handlers parse requests, call one service operation and render the result;
// error kinds map to statuses in one place.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"calixo/internal/apperr"
	"calixo/internal/model"
	"calixo/internal/service"
)

const profileKey = "calixo.profile"

// SetProfile stores the authenticated caller's profile on the request.
func SetProfile(c *gin.Context, p *model.Profile) {
	c.Set(profileKey, p)
}

// CurrentProfile returns the authenticated caller's profile, or nil.
func CurrentProfile(c *gin.Context) *model.Profile {
	v, ok := c.Get(profileKey)
	if !ok {
		return nil
	}
	p, _ := v.(*model.Profile)
	return p
}

func userID(c *gin.Context) string {
	if p := CurrentProfile(c); p != nil {
		return p.UserID
	}
	return ""
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindUnauthorized:         http.StatusUnauthorized,
	apperr.KindForbidden:            http.StatusForbidden,
	apperr.KindNotFound:             http.StatusNotFound,
	apperr.KindValidation:           http.StatusBadRequest,
	apperr.KindStateConflict:        http.StatusConflict,
	apperr.KindInsufficientResource: http.StatusPaymentRequired,
	apperr.KindEntitlementRequired:  http.StatusForbidden,
	apperr.KindInternal:             http.StatusInternalServerError,
}

// StatusOf returns the HTTP status for an error.
func StatusOf(err error) int {
	if s, ok := statusByKind[apperr.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error aborts the request with the status and body for err. Internal errors
// are logged and their details withheld.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := StatusOf(err)
	if kind == apperr.KindInternal {
		log.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Str("user_id", userID(c)).
			Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.MessageOf(err),
		"code":  kind,
	})
}

// bind decodes the JSON body into dst and runs binding validation.
// An empty body is accepted for requests whose fields are all optional.
func bind(c *gin.Context, dst any) bool {
	var err error
	if c.Request.ContentLength == 0 {
		err = binding.Validator.ValidateStruct(dst)
	} else {
		err = c.ShouldBindJSON(dst)
	}
	if err != nil {
		Error(c, bindError(err))
		return false
	}
	return true
}

// bindError turns decoder and validator errors into a validation error.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return apperr.Validation(strings.Join(msgs, "; "))
	}
	return apperr.Wrap(apperr.KindValidation, "invalid request body", err)
}

func fieldMessage(fe validator.FieldError) string {
	field := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "challengetype":
		return field + " must be one of daily, focus, social"
	case "itemcategory":
		return field + " is not a known item category"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// uuidParam parses a path parameter as a UUID. Malformed ids are reported as
// not found so they are indistinguishable from unknown ones.
func uuidParam(c *gin.Context, name string, notFound error) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Error(c, notFound)
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func int64Query(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperr.Validation(name + " must be an integer")
	}
	return &v, nil
}

func boolQuery(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation(name + " must be true or false")
	}
	return &v, nil
}

// formImage reads an optional image file from a multipart form. The caller
// must close the returned closer when it is not nil.
func formImage(c *gin.Context, field string, maxBytes int64) (*service.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindValidation, "invalid multipart form", err)
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, nil, apperr.Validation(fmt.Sprintf("image must be at most %d bytes", maxBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	u := &service.Upload{
		Body:        f,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
	}
	return u, func() { _ = f.Close() }, nil
}

// requiredImage reads a mandatory image file from a multipart form.
func requiredImage(c *gin.Context, field string, maxBytes int64) (*service.Upload, func(), bool) {
	u, closeFn, err := formImage(c, field, maxBytes)
	if err == nil && u == nil {
		err = apperr.Validation(field + " file is required")
	}
	if err != nil {
		Error(c, err)
		return nil, nil, false
	}
	return u, closeFn, true
}
