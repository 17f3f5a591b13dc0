package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andcoolsystems/eldraxis/internal/skins"
	appErrors "github.com/andcoolsystems/eldraxis/pkg/errors"
	"github.com/andcoolsystems/eldraxis/pkg/logger"
	"github.com/andcoolsystems/eldraxis/pkg/response"
)

const (
	contentTypePNG = "image/png"
	noCache        = "no-cache"
	welcomeMessage = "Welcome to eldraxis!"
)

// SkinHandler renders the skin engine over HTTP.
type SkinHandler struct {
	service   *skins.Service
	search    *skins.SearchIndex
	publicURL string
	log       *zap.Logger
}

// NewSkinHandler constructs a handler. publicURL is the externally visible
// base used for the eldraxis texture links in profile responses.
func NewSkinHandler(service *skins.Service, search *skins.SearchIndex, publicURL string) (*SkinHandler, error) {
	if service == nil {
		return nil, errors.New("skin handler: service is required")
	}
	if search == nil {
		return nil, errors.New("skin handler: search index is required")
	}
	return &SkinHandler{
		service:   service,
		search:    search,
		publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/"),
		log:       logger.WithModule("http"),
	}, nil
}

type skinQuery struct {
	Cape bool `form:"cape"`
}

type head3DQuery struct {
	Vertical   *float64 `form:"v" validate:"omitempty,gte=-90,lte=90"`
	Horizontal *float64 `form:"h" validate:"omitempty,gte=-3600,lte=3600"`
}

type searchQuery struct {
	Take int `form:"take" validate:"gte=0"`
	Page int `form:"page" validate:"gte=0"`
}

// Root GET /
func (h *SkinHandler) Root(c *gin.Context) {
	response.Message(c, http.StatusOK, welcomeMessage)
}

// Skin GET /skin/:nickname?cape=bool
//
// Without cape the raw skin PNG is returned, with it a JSON envelope carrying
// both textures. "Cache-Control: no-cache" forces a refetch and is echoed back.
func (h *SkinHandler) Skin(c *gin.Context) {
	bypass := strings.EqualFold(strings.TrimSpace(c.GetHeader("Cache-Control")), noCache)
	if bypass {
		c.Header("Cache-Control", noCache)
	}

	identifier, ok := identifierParam(c)
	if !ok {
		return
	}
	var query skinQuery
	if !bindQuery(c, &query) {
		return
	}

	mode := skins.ModeFresh
	if bypass {
		mode = skins.ModeForceRefresh
	}

	res, err := h.service.GetOrRefresh(requestContext(c), skins.Request{
		Identifier: identifier,
		Mode:       mode,
		WantCape:   query.Cape,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if query.Cape {
		response.Success(c, http.StatusOK, res.Envelope())
		return
	}
	c.Data(http.StatusOK, contentTypePNG, res.Skin)
}

// Head GET /head/:nickname
func (h *SkinHandler) Head(c *gin.Context) {
	identifier, ok := identifierParam(c)
	if !ok {
		return
	}
	img, err := h.service.Head(requestContext(c), identifier)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypePNG, img)
}

// Cape GET /cape/:nickname
func (h *SkinHandler) Cape(c *gin.Context) {
	identifier, ok := identifierParam(c)
	if !ok {
		return
	}
	img, err := h.service.Cape(requestContext(c), identifier)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypePNG, img)
}

// Head3D GET /head3d/:nickname?v=&h=
func (h *SkinHandler) Head3D(c *gin.Context) {
	identifier, ok := identifierParam(c)
	if !ok {
		return
	}
	var query head3DQuery
	if !bindQuery(c, &query) {
		return
	}

	angles := skins.DefaultAngles()
	if query.Vertical != nil {
		angles.Vertical = *query.Vertical
	}
	if query.Horizontal != nil {
		angles.Horizontal = *query.Horizontal
	}

	img, err := h.service.Head3D(requestContext(c), identifier, angles)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypePNG, img)
}

// Profile GET /profile/:nickname
func (h *SkinHandler) Profile(c *gin.Context) {
	identifier, ok := identifierParam(c)
	if !ok {
		return
	}
	info, err := h.service.Profile(requestContext(c), identifier)
	if err != nil {
		h.fail(c, err)
		return
	}

	var capeTexture any
	if info.Textures.HasCape() {
		capeTexture = gin.H{
			"mojang":   info.Textures.CapeURL,
			"eldraxis": h.publicURL + "/cape/" + info.UUID,
		}
	}
	var lastCached any
	if info.Cached {
		lastCached = info.LastCached.UnixMilli()
	}

	response.Flat(c, http.StatusOK, gin.H{
		"message":     "",
		"timestamp":   info.Timestamp,
		"uuid":        info.UUID,
		"uuid_dashed": info.DashedUUID,
		"nickname":    info.Name,
		"textures": gin.H{
			"SKIN": gin.H{
				"mojang":   info.Textures.SkinURL,
				"eldraxis": h.publicURL + "/skin/" + info.UUID,
			},
			"CAPE": capeTexture,
		},
		"eldraxis_cache": gin.H{
			"available_in_search": info.Cached,
			"last_cached":         lastCached,
		},
	})
}

// Search GET /search/:nickname?take=&page=
//
// Answers 204 when the fragment is too short or nothing matches.
func (h *SkinHandler) Search(c *gin.Context) {
	fragment := strings.TrimSpace(c.Param("nickname"))
	var query searchQuery
	if !bindQuery(c, &query) {
		return
	}

	page, err := h.search.Search(requestContext(c), fragment, query.Take, query.Page)
	if errors.Is(err, skins.ErrNoContent) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Flat(c, http.StatusOK, gin.H{
		"requestedFragment": page.Fragment,
		"data":              page.Items,
		"total_count":       page.TotalCount,
		"next_page":         page.NextPage,
	})
}

// fail maps engine errors to client responses. Missing profiles and capes are
// told apart; everything else is the generic failure and the detail stays in the log.
func (h *SkinHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, skins.ErrNoCape):
		response.Error(c, appErrors.ErrCapeNotFound)
	case errors.Is(err, skins.ErrNotFound):
		response.Error(c, appErrors.ErrProfileNotFound)
	default:
		h.log.Warn("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		_ = c.Error(err)
		response.Error(c, appErrors.ErrInternalServer.WithInternal(err))
	}
}
