package pagination

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bluebutton/server/internal/platform/fhir"
)

// Query parameters that control paging.
const (
	ParamCount      = "_count"
	ParamStartIndex = "startIndex"
)

// ErrPagingNotRequested is returned by PageSize and StartIndex when the
// request carried no paging parameters.
var ErrPagingNotRequested = errors.New("pagination: paging was not requested")

// LinkSetter receives navigation links. *fhir.Bundle satisfies it.
type LinkSetter interface {
	AddLink(relation, url string)
}

// Arguments holds the paging parameters of one search request.
type Arguments struct {
	pageSize   *int
	startIndex *int
	serverBase string
}

// FromContext extracts paging arguments from the echo context. serverBase is
// the absolute base URL that paging links are built on.
func FromContext(c echo.Context, serverBase string) (*Arguments, error) {
	return FromRequest(c.Request().Context(), c.QueryParams(), serverBase)
}

// FromRequest parses _count and startIndex from params. Only the first
// occurrence of each parameter is used. A value that is not a 32-bit base-10
// integer, or is negative, fails with an InvalidRequestError.
func FromRequest(ctx context.Context, params url.Values, serverBase string) (*Arguments, error) {
	pageSize, err := parseIntParam(ctx, params, ParamCount)
	if err != nil {
		return nil, err
	}
	startIndex, err := parseIntParam(ctx, params, ParamStartIndex)
	if err != nil {
		return nil, err
	}
	return &Arguments{pageSize: pageSize, startIndex: startIndex, serverBase: serverBase}, nil
}

// New builds Arguments directly. A nil pointer means the parameter was absent.
func New(pageSize, startIndex *int, serverBase string) *Arguments {
	return &Arguments{pageSize: pageSize, startIndex: startIndex, serverBase: serverBase}
}

func parseIntParam(ctx context.Context, params url.Values, name string) (*int, error) {
	vals, ok := params[name]
	if !ok || len(vals) == 0 {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(vals[0], 10, 32)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Ctx(ctx).Str("param", name).Str("value", vals[0]).
			Msg("invalid paging argument")
		return nil, &fhir.InvalidRequestError{
			Msg: "Invalid argument in request URL: " + name + ". Cannot parse to Integer.",
			Err: err,
		}
	}
	n := int(parsed)
	if _, err := nonNegative(name, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// IsPagingRequested reports whether the request asked for a page. A
// startIndex without _count is ambiguous and fails with an ArgumentError.
func (a *Arguments) IsPagingRequested() (bool, error) {
	if a.pageSize != nil {
		return true, nil
	}
	if a.startIndex == nil {
		return false, nil
	}
	return false, fhir.NewArgumentError("Mismatched paging arguments: pageSize='%s', startIndex='%s'",
		describe(a.pageSize), describe(a.startIndex))
}

// PageSize returns _count.
func (a *Arguments) PageSize() (int, error) {
	requested, err := a.IsPagingRequested()
	if err != nil {
		return 0, err
	}
	if !requested {
		return 0, ErrPagingNotRequested
	}
	return nonNegative(ParamCount, *a.pageSize)
}

// StartIndex returns startIndex, or 0 when only _count was given.
func (a *Arguments) StartIndex() (int, error) {
	requested, err := a.IsPagingRequested()
	if err != nil {
		return 0, err
	}
	if !requested {
		return 0, ErrPagingNotRequested
	}
	if a.startIndex == nil {
		return 0, nil
	}
	return nonNegative(ParamStartIndex, *a.startIndex)
}

func nonNegative(name string, n int) (int, error) {
	if n < 0 {
		return 0, fhir.NewInvalidRequestError("Invalid argument in request URL: %s. Must not be negative.", name)
	}
	return n, nil
}

// AddPagingLinks adds first, next, prev and last links to b. resourcePath
// ends with "?" and searchParamSeparator looks like "&beneficiary=".
// numTotal == 0 is not special-cased; see lastIndex.
func (a *Arguments) AddPagingLinks(b LinkSetter, resourcePath, searchParamSeparator, identifier string, numTotal int) error {
	pageSize, err := a.PageSize()
	if err != nil {
		return err
	}
	startIndex, err := a.StartIndex()
	if err != nil {
		return err
	}
	if pageSize == 0 {
		return fhir.NewInvalidRequestError("Cannot divide by zero: pageSize=%d", pageSize)
	}

	link := func(index int) string {
		return a.serverBase + resourcePath +
			ParamCount + "=" + strconv.Itoa(pageSize) +
			"&" + ParamStartIndex + "=" + strconv.Itoa(index) +
			searchParamSeparator + identifier
	}

	b.AddLink(fhir.LinkFirst, link(0))
	// Both are non-negative, so this is startIndex+pageSize < numTotal
	// without the overflow.
	if pageSize < numTotal-startIndex {
		b.AddLink(fhir.LinkNext, link(startIndex+pageSize))
	}
	if startIndex-pageSize >= 0 {
		b.AddLink(fhir.LinkPrev, link(startIndex-pageSize))
	}
	b.AddLink(fhir.LinkLast, link(lastIndex(numTotal, pageSize)))
	return nil
}

// lastIndex truncates toward zero, so numTotal == 0 gives -1 when pageSize
// is 1 and 0 otherwise.
func lastIndex(numTotal, pageSize int) int {
	return (numTotal - 1) / pageSize * pageSize
}

func describe(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}
