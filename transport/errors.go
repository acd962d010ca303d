package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-reveal/core"
)

type failureKind int

const (
	failureUnconfigured failureKind = iota
	failureRequest
	failureExchange
	failureResponse
)

type failureClass struct {
	category goerrors.Category
	status   int
	textCode string
}

// Transport failures never carry upstream semantics. Callers decide whether
// a failed exchange is an auth, init or server problem.
var failureClasses = map[failureKind]failureClass{
	failureUnconfigured: {goerrors.CategoryInternal, http.StatusInternalServerError, core.ErrorServer},
	failureRequest:      {goerrors.CategoryBadInput, http.StatusBadRequest, core.ErrorBadInput},
	failureExchange:     {goerrors.CategoryExternal, http.StatusBadGateway, core.ErrorServer},
	failureResponse:     {goerrors.CategoryExternal, http.StatusBadGateway, core.ErrorServer},
}

// failure builds the go-errors envelope for kind. source may be nil.
func failure(kind failureKind, source error, message string, metadata map[string]any) *goerrors.Error {
	class := failureClasses[kind]
	var err *goerrors.Error
	if source != nil {
		err = goerrors.Wrap(source, class.category, message)
	} else {
		err = goerrors.New(message, class.category)
	}
	err = err.WithCode(class.status).WithTextCode(class.textCode)
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["adapter"] = KindREST
	return err.WithMetadata(metadata)
}
