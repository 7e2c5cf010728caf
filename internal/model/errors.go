package model

import (
	"errors"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrStageExists    = errors.New("temporary directory already exists")
)
