// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bullbear/internal/models"
)

// instrumentCodeRegex matches exchange tickers such as BBCA or BRK.B.
var instrumentCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]{0,19}$`)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("risk_tolerance", validateRiskTolerance)
		_ = v.RegisterValidation("time_horizon", validateTimeHorizon)
		_ = v.RegisterValidation("decision_type", validateDecisionType)
		_ = v.RegisterValidation("instrument_code", validateInstrumentCode)
	}
}

func validateRiskTolerance(fl validator.FieldLevel) bool {
	return models.RiskTolerance(fl.Field().String()).Valid()
}

func validateTimeHorizon(fl validator.FieldLevel) bool {
	return models.TimeHorizon(fl.Field().String()).Valid()
}

func validateDecisionType(fl validator.FieldLevel) bool {
	switch models.DecisionType(fl.Field().String()) {
	case models.DecisionBuy, models.DecisionSell, models.DecisionHold, models.DecisionPending:
		return true
	}
	return false
}

func validateInstrumentCode(fl validator.FieldLevel) bool {
	return instrumentCodeRegex.MatchString(fl.Field().String())
}
