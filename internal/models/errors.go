package models

// EntityError is a validation or lookup error for a model entity
type EntityError struct {
	Message string
}

func (e EntityError) Error() string {
	return e.Message
}

var (
	ErrEmptyName         = EntityError{"name cannot be empty"}
	ErrEmptySiteID       = EntityError{"site id cannot be empty"}
	ErrEmptyTrade        = EntityError{"trade cannot be empty"}
	ErrEmptySurveyorID   = EntityError{"surveyor id cannot be empty"}
	ErrInvalidStatus     = EntityError{"invalid survey status"}
	ErrEmptySurveyID     = EntityError{"survey id cannot be empty"}
	ErrEmptyAssetID      = EntityError{"asset id cannot be empty"}
	ErrInvalidRating     = EntityError{"condition rating must be between 1 and 5"}
	ErrInvalidQuantity   = EntityError{"quantity cannot be negative"}
	ErrEmptyInspectionID = EntityError{"asset inspection id cannot be empty"}
	ErrEmptyFilePath     = EntityError{"file path cannot be empty"}
)
