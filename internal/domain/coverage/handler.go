package coverage

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bluebutton/server/internal/platform/fhir"
	"github.com/bluebutton/server/pkg/pagination"
)

// Handler exposes the Provider over HTTP.
type Handler struct {
	provider   *Provider
	serverBase string
	mountPath  string
}

// NewHandler creates a Handler. serverBase is the absolute FHIR base URL
// used in paging links; when empty it is derived from each request and
// mountPath.
func NewHandler(provider *Provider, serverBase, mountPath string) *Handler {
	return &Handler{
		provider:   provider,
		serverBase: strings.TrimSuffix(serverBase, "/"),
		mountPath:  strings.TrimSuffix(mountPath, "/"),
	}
}

func (h *Handler) RegisterRoutes(fhirGroup *echo.Group) {
	fhirGroup.GET("/Coverage", h.SearchCoverageFHIR)
	fhirGroup.GET("/Coverage/:id", h.GetCoverageFHIR)
	fhirGroup.GET("/Coverage/:id/_history/:vid", h.GetCoverageFHIR)
}

// Capability describes the Coverage endpoints for the CapabilityStatement.
func Capability() fhir.CSResource {
	return fhir.ReadSearchCapability(ResourceType, []fhir.CSSearchParam{
		{Name: "beneficiary", Type: "reference", Documentation: "The Patient the Coverages belong to"},
		{Name: pagination.ParamCount, Type: "number", Documentation: "Page size"},
		{Name: pagination.ParamStartIndex, Type: "number", Documentation: "Zero-based offset of the first entry"},
	})
}

func (h *Handler) GetCoverageFHIR(c echo.Context) error {
	id := &fhir.IDType{
		ResourceType: ResourceType,
		IDPart:       pathParam(c, "id"),
		VersionPart:  pathParam(c, "vid"),
	}
	cov, err := h.provider.Read(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cov)
}

func (h *Handler) SearchCoverageFHIR(c echo.Context) error {
	raw := c.QueryParam("beneficiary")
	if strings.TrimSpace(raw) == "" {
		return fhir.NewInvalidRequestError("Missing required search parameter: beneficiary")
	}
	paging, err := pagination.FromContext(c, h.baseURL(c))
	if err != nil {
		return err
	}
	bundle, err := h.provider.SearchByBeneficiary(c.Request().Context(), fhir.ParseReferenceParam(raw), paging)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) baseURL(c echo.Context) string {
	if h.serverBase != "" {
		return h.serverBase
	}
	return c.Scheme() + "://" + c.Request().Host + h.mountPath
}

func pathParam(c echo.Context, name string) string {
	v := c.Param(name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
