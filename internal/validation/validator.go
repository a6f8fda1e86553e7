package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a validator with the struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(jsonName)
	v.RegisterStructValidation(createEventStructValidation, CreateEventRequest{})
	return v
}

// jsonName reports fields by their JSON name so errors match the request body.
func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// createEventStructValidation checks dates and the fields each event type needs.
func createEventStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateEventRequest)

	if !req.StartingDate.IsZero() && !req.EventEndDate.After(req.StartingDate) {
		sl.ReportError(req.EventEndDate, "eventEndDate", "EventEndDate", "after_start", "")
	}
	if req.EntryFee > 0 && req.Currency == "" {
		sl.ReportError(req.Currency, "currency", "Currency", "required_with_fee", "")
	}

	switch req.EventType {
	case "photography":
		if len(req.Themes) == 0 {
			sl.ReportError(req.Themes, "themes", "Themes", "required_for_photography", "")
		}
		if req.MaxPhotos < 1 {
			sl.ReportError(req.MaxPhotos, "maxPhotos", "MaxPhotos", "min_one_photo", "")
		}
		switch d := req.PhotoSubmissionDeadline; {
		case d == nil:
			sl.ReportError(d, "photoSubmissionDeadline", "PhotoSubmissionDeadline", "required_for_photography", "")
		case d.After(req.EventEndDate):
			sl.ReportError(d, "photoSubmissionDeadline", "PhotoSubmissionDeadline", "before_end", "")
		}
	case "quiz":
		if len(req.Questions) == 0 {
			sl.ReportError(req.Questions, "questions", "Questions", "required_for_quiz", "")
		}
		for i, q := range req.Questions {
			if q.Answer >= len(q.Options) {
				sl.ReportError(q.Answer, fmt.Sprintf("questions[%d].answer", i), "Answer", "answer_in_options", "")
			}
		}
	}
}
