package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/id"
	"github.com/dunamismax/iconforge/internal/intake"
	"github.com/dunamismax/iconforge/internal/service"
	"github.com/gin-gonic/gin"
)

type formBlock struct {
	Action string
	Label  string
	Button string
}

func uploadForm(action, label, button string) formBlock {
	return formBlock{Action: action, Label: label, Button: button}
}

func (s *Server) render(c *gin.Context, name, title string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Title"] = title
	data["Flashes"] = s.popFlashes(c)
	c.HTML(http.StatusOK, name, data)
}

func (s *Server) handleIndex(c *gin.Context) {
	s.render(c, "index.html", "", nil)
}

func (s *Server) handleInstructions(c *gin.Context) {
	s.render(c, "instructions.html", "Instructions", nil)
}

func (s *Server) handleConvertForm(c *gin.Context) {
	s.render(c, "upload_form.html", "Convert", nil)
}

func (s *Server) handleConvert(c *gin.Context) {
	width, err := optionalInt(c.PostForm("width"), "width")
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	height, err := optionalInt(c.PostForm("height"), "height")
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}

	token := id.New()
	upload, err := s.stageUpload(c, token)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}

	asset, err := s.studio.Convert(c.Request.Context(), token, upload.Key, width, height)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	c.Redirect(http.StatusSeeOther, assetPath("/preview", asset))
}

func (s *Server) handlePreview(c *gin.Context) {
	token, name := c.Param("token"), c.Param("filename")
	ok, err := s.studio.Exists(c.Request.Context(), token, name)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s/%s", domain.ErrAssetNotFound, token, name)
	}
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	s.render(c, "preview.html", "Preview", gin.H{"Token": token, "Filename": name})
}

func (s *Server) handleInline(c *gin.Context) {
	obj, err := s.studio.Open(c.Request.Context(), c.Param("token"), c.Param("filename"))
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

func (s *Server) handleDownload(c *gin.Context) {
	obj, err := s.studio.Open(c.Request.Context(), c.Param("token"), c.Param("filename"))
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	sendAttachment(c, obj)
}

func (s *Server) handleIconSet(c *gin.Context) {
	token := id.New()
	upload, err := s.stageUpload(c, token)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}

	asset, err := s.studio.IconSet(c.Request.Context(), token, upload.Key)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	s.render(c, "icon_set_generated.html", "Icon set", gin.H{
		"Token":    asset.Token,
		"Filename": asset.Filename,
		"Count":    len(domain.IconSizeTable),
	})
}

func (s *Server) handleDownloadAssets(c *gin.Context) {
	obj, err := s.studio.Open(c.Request.Context(), c.Param("token"), c.Param("filename"))
	if err != nil {
		s.fail(c, err, "/")
		return
	}
	sendAttachment(c, obj)
}

func (s *Server) handleFiltersForm(c *gin.Context) {
	s.render(c, "filters.html", "Filters", gin.H{
		"Filters": []domain.FilterKind{domain.FilterGrayscale, domain.FilterBlur, domain.FilterSharpen, domain.FilterInvert},
	})
}

func (s *Server) handleFilters(c *gin.Context) {
	kind, err := domain.ParseFilterKind(c.DefaultPostForm("filter_type", string(domain.FilterGrayscale)))
	if err != nil {
		s.fail(c, err, "/filters")
		return
	}

	token := id.New()
	upload, err := s.stageUpload(c, token)
	if err != nil {
		s.fail(c, err, "/filters")
		return
	}

	asset, err := s.studio.Filter(c.Request.Context(), token, upload.Key, kind)
	if err != nil {
		s.fail(c, err, "/filters")
		return
	}
	s.streamAsset(c, asset, "/filters")
}

func (s *Server) handleHomescreenMockup(c *gin.Context) {
	token, name := c.Param("token"), c.Param("filename")
	asset, err := s.studio.HomescreenMockup(c.Request.Context(), token, name)
	if err != nil {
		back := "/convert"
		if id.Valid(token) {
			back = "/preview/" + token + "/" + name
		}
		s.fail(c, err, back)
		return
	}
	s.render(c, "result.html", "Home screen mockup", gin.H{"Token": asset.Token, "Filename": asset.Filename})
}

func (s *Server) handleFrameScreenshot(c *gin.Context) {
	token := id.New()
	upload, err := s.stageUpload(c, token)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}

	asset, err := s.studio.FrameScreenshot(c.Request.Context(), token, upload.Key)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	s.render(c, "result.html", "Framed screenshot", gin.H{"Token": asset.Token, "Filename": asset.Filename})
}

func (s *Server) handleColorProfile(c *gin.Context) {
	token := id.New()
	upload, err := s.stageUpload(c, token)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}

	asset, err := s.studio.NormalizeColor(c.Request.Context(), token, upload.Key)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	s.streamAsset(c, asset, "/convert")
}

func (s *Server) handleLaunchScreen(c *gin.Context) {
	token := id.New()
	upload, err := s.stageUpload(c, token)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}

	asset, err := s.studio.LaunchScreen(c.Request.Context(), token, upload.Key)
	if err != nil {
		s.fail(c, err, "/convert")
		return
	}
	s.render(c, "result.html", "Launch screen", gin.H{"Token": asset.Token, "Filename": asset.Filename})
}

func (s *Server) handleTypographyForm(c *gin.Context) {
	s.render(c, "typography_preview.html", "Typography", gin.H{
		"Text":     domain.DefaultText,
		"FontSize": domain.DefaultFontSize,
	})
}

func (s *Server) handleTypography(c *gin.Context) {
	size, err := optionalSize(c.PostForm("font_size"), "font_size")
	if err != nil {
		s.fail(c, err, "/typography_preview")
		return
	}
	spec := domain.TypographySpec(c.PostForm("text"), size)

	asset, err := s.studio.Typography(c.Request.Context(), id.New(), spec.Text, spec.FontSize)
	if err != nil {
		s.fail(c, err, "/typography_preview")
		return
	}
	s.render(c, "typography_preview.html", "Typography", gin.H{
		"Text":     spec.Text,
		"FontSize": spec.FontSize,
		"Token":    asset.Token,
		"Filename": asset.Filename,
	})
}

// stageUpload reads the "file" form field into storage under token.
func (s *Server) stageUpload(c *gin.Context, token string) (intake.Upload, error) {
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return intake.Upload{}, fmt.Errorf("%w: request body over %d bytes", domain.ErrImageTooLarge, tooLarge.Limit)
		}
		return intake.Upload{}, fmt.Errorf("%w: %v", domain.ErrNoFile, err)
	}
	return s.intake.Stage(c.Request.Context(), token, header)
}

func (s *Server) streamAsset(c *gin.Context, asset domain.DerivedAsset, back string) {
	obj, err := s.studio.Open(c.Request.Context(), asset.Token, asset.Filename)
	if err != nil {
		s.fail(c, err, back)
		return
	}
	sendAttachment(c, obj)
}

// fail flashes a user facing message for err and redirects to target.
func (s *Server) fail(c *gin.Context, err error, target string) {
	_ = c.Error(err)
	s.addFlash(c, flashMessage(err))
	c.Redirect(http.StatusSeeOther, target)
}

func flashMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoFile):
		return "No file selected. Please choose an image."
	case errors.Is(err, domain.ErrAssetNotFound):
		return "The requested file does not exist."
	case errors.Is(err, domain.ErrUnavailable):
		return "This feature is unavailable on this server."
	case errors.Is(err, domain.ErrImageTooLarge):
		return "The image is too large to process."
	case errors.Is(err, domain.ErrUnknownFilter):
		return "Unknown filter. Choose grayscale, blur, sharpen or invert."
	case errors.Is(err, domain.ErrInvalidSpec):
		return "The requested size or text is not supported."
	default:
		return "An error occurred during conversion. Please try again with a valid image."
	}
}

func sendAttachment(c *gin.Context, obj service.Object) {
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name}))
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}

func assetPath(prefix string, asset domain.DerivedAsset) string {
	return prefix + "/" + asset.Token + "/" + asset.Filename
}

func optionalInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidSpec, field)
	}
	return n, nil
}

// optionalSize is optionalInt without the zero value: a blank field still
// selects the default, an explicit 0 is rejected.
func optionalSize(raw, field string) (int, error) {
	n, err := optionalInt(raw, field)
	if err != nil {
		return 0, err
	}
	if n == 0 && strings.TrimSpace(raw) != "" {
		return 0, fmt.Errorf("%w: %s must be a positive integer", domain.ErrInvalidSpec, field)
	}
	return n, nil
}
