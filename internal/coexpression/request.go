package coexpression

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		if err := validate.RegisterValidation("unitinterval", func(fl validator.FieldLevel) bool {
			d, err := decimal.NewFromString(fmt.Sprint(fl.Field()))
			if err != nil {
				return false
			}
			return !d.IsNegative() && d.LessThanOrEqual(decimal.NewFromInt(1))
		}); err != nil {
			panic(fmt.Sprintf("failed to register unitinterval validation: %v", err))
		}
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("param"), ",", 2)[0]
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// FilterGenesRequest is a typed builder for filter_genes parameters.
type FilterGenesRequest struct {
	WorkspaceID string          `param:"ws_id" validate:"required"`
	InputID     string          `param:"inobj_id" validate:"required"`
	OutputID    string          `param:"outobj_id" validate:"required"`
	PValue      decimal.Decimal `param:"p_value" validate:"unitinterval"`
	Method      string          `param:"method" validate:"required"`
	NumGenes    int             `param:"num_genes" validate:"gte=0"`
}

// Params validates r and renders it as a wire parameter map.
func (r FilterGenesRequest) Params() (Params, error) {
	if err := validateRequest(r); err != nil {
		return nil, err
	}
	return Params{
		FieldWorkspaceID: r.WorkspaceID,
		FieldInputID:     r.InputID,
		FieldOutputID:    r.OutputID,
		FieldPValue:      r.PValue.String(),
		FieldMethod:      r.Method,
		FieldNumGenes:    strconv.Itoa(r.NumGenes),
	}, nil
}

// ConstCoexNetClustRequest is a typed builder for const_coex_net_clust
// parameters.
type ConstCoexNetClustRequest struct {
	WorkspaceID string          `param:"ws_id" validate:"required"`
	InputID     string          `param:"inobj_id" validate:"required"`
	OutputID    string          `param:"outobj_id" validate:"required"`
	CutOff      decimal.Decimal `param:"cut_off" validate:"unitinterval"`
	NetMethod   string          `param:"net_method" validate:"required"`
	ClustMethod string          `param:"clust_method" validate:"required"`
	NumModules  int             `param:"num_modules" validate:"gte=0"`
}

// Params validates r and renders it as a wire parameter map.
func (r ConstCoexNetClustRequest) Params() (Params, error) {
	if err := validateRequest(r); err != nil {
		return nil, err
	}
	return Params{
		FieldWorkspaceID: r.WorkspaceID,
		FieldInputID:     r.InputID,
		FieldOutputID:    r.OutputID,
		FieldCutOff:      r.CutOff.String(),
		FieldNetMethod:   r.NetMethod,
		FieldClustMethod: r.ClustMethod,
		FieldNumModules:  strconv.Itoa(r.NumModules),
	}, nil
}

func validateRequest(req any) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "unitinterval":
			msgs = append(msgs, fmt.Sprintf("%s must be between 0 and 1", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
