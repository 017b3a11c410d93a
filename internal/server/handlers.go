package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"pdf-visual-translator/internal/geom"
	"pdf-visual-translator/internal/logger"
	"pdf-visual-translator/internal/session"
	"pdf-visual-translator/internal/store"
	"pdf-visual-translator/internal/types"
)

var success = map[string]string{"status": "success"}

// number accepts 3, 3.5 or "3".
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*n = number(v)
	return nil
}

// modelSelection is the ["provider", "model"] pair sent by the UI.
type modelSelection []string

func (m modelSelection) provider() string {
	if len(m) > 0 {
		return strings.TrimSpace(m[0])
	}
	return ""
}

func (m modelSelection) model() string {
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (s *Server) getConfig(c echo.Context) error {
	raw, err := s.config.RawConfig()
	if err != nil {
		if types.KindOf(err) == types.KindIO {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Config file not found"})
		}
		return err
	}
	return c.JSONBlob(http.StatusOK, raw)
}

func (s *Server) saveConfig(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	if err := s.config.SaveRaw(body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success)
}

func (s *Server) providers(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"providers": s.sessions.Registry().Providers()})
}

func (s *Server) listPDFs(c echo.Context) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	entries, err := lib.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"root": lib.Root(), "pdfs": entries})
}

func (s *Server) servePDF(c echo.Context) error {
	lib, err := s.library()
	if err != nil {
		return err
	}
	path, err := lib.Resolve(c.Param("*"))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/pdf")
	return c.File(path)
}

type initRequest struct {
	PDFPath           string         `json:"pdf_path"`
	StorePath         string         `json:"output_json_path"`
	ExportPath        string         `json:"translated_pdf_path"`
	FontName          string         `json:"font_name"`
	FontFile          string         `json:"font_file"`
	TargetLanguage    string         `json:"target_language"`
	ModelSelection    modelSelection `json:"model_selection"`
	ExtraRequirements string         `json:"extra_requirements"`
}

func (s *Server) initTranslator(c echo.Context) error {
	var req initRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	cfg := s.config.GetConfig()
	opts := session.Options{
		PDFPath:           s.resolvePDF(req.PDFPath),
		StorePath:         req.StorePath,
		ExportPath:        req.ExportPath,
		FontName:          firstNonEmpty(req.FontName, cfg.FontName),
		FontFile:          firstNonEmpty(req.FontFile, cfg.FontFile),
		TargetLanguage:    firstNonEmpty(req.TargetLanguage, cfg.TargetLanguage),
		Provider:          firstNonEmpty(req.ModelSelection.provider(), cfg.Provider),
		Model:             firstNonEmpty(req.ModelSelection.model(), cfg.Model),
		ExtraRequirements: firstNonEmpty(req.ExtraRequirements, cfg.ExtraRequirements),
		MinFontSize:       cfg.MinFontSize,
		PreviewScale:      cfg.PreviewScale,
	}
	if req.ModelSelection.provider() != "" && req.ModelSelection.model() == "" {
		// 换了服务商但没指定模型时用服务商默认模型
		opts.Model = ""
	}

	sess, err := s.sessions.Open(opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     "success",
		"session_id": sess.ID(),
		"page_count": sess.PageCount(),
		"scanned":    sess.Scanned(),
	})
}

// HeaderSessionID pins a request to one session. Without it the current
// session is used.
const HeaderSessionID = "X-Session-ID"

func (s *Server) session(c echo.Context) (*session.Session, error) {
	if id := strings.TrimSpace(c.Request().Header.Get(HeaderSessionID)); id != "" {
		return s.sessions.Get(id)
	}
	return s.sessions.Current()
}

// resolvePDF accepts absolute paths, paths relative to the working
// directory and paths relative to the PDF folder, in that order.
func (s *Server) resolvePDF(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if fileExists(p) {
		return p
	}
	if lib, err := s.library(); err == nil {
		if resolved, err := lib.Resolve(p); err == nil {
			return resolved
		}
	}
	return p
}

type pageRequest struct {
	PageNum number `json:"page_num"`
	Scale   number `json:"scale"`
}

func (s *Server) getPageInfo(c echo.Context) error {
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	info, err := sess.PageInfo(int(req.PageNum))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

type translateRequest struct {
	Text              string         `json:"text"`
	ModelSelection    modelSelection `json:"model_selection"`
	ExtraRequirements string         `json:"extra_requirements"`
}

func (s *Server) translateBlock(c echo.Context) error {
	var req translateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return types.NewAppError(types.ErrInvalidInput, "text is required", nil)
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	translation, err := sess.Translate(c.Request().Context(), session.TranslateRequest{
		Text:              req.Text,
		Provider:          req.ModelSelection.provider(),
		Model:             req.ModelSelection.model(),
		ExtraRequirements: req.ExtraRequirements,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"translation": translation})
}

type blockRequest struct {
	PageNum     number     `json:"page_num"`
	BlockIndex  number     `json:"block_index"`
	Original    string     `json:"original"`
	Translation *string    `json:"translation"`
	Rect        *geom.Rect `json:"rect"`
	NewRect     *geom.Rect `json:"new_rect"`
	FontSize    number     `json:"font_size"`
	Color       geom.Color `json:"color"`
	Align       geom.Align `json:"align"`
}

func (s *Server) deleteBlock(c echo.Context) error {
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.Rect == nil {
		return types.NewAppError(types.ErrInvalidInput, "rect is required", nil)
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	if err := sess.DeleteBlock(int(req.PageNum), *req.Rect, req.Original); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success)
}

func (s *Server) saveTranslation(c echo.Context) error {
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	if req.Rect == nil {
		return types.NewAppError(types.ErrInvalidInput, "rect is required", nil)
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}

	logger.Debug("save translation",
		logger.Int("page", int(req.PageNum)),
		logger.Int("block", int(req.BlockIndex)),
		logger.Bool("moved", req.NewRect != nil))

	err = sess.SaveBlock(store.SaveRequest{
		Page:        int(req.PageNum),
		Original:    req.Original,
		Rect:        *req.Rect,
		Translation: req.Translation,
		FontSize:    float64(req.FontSize),
		Color:       req.Color,
		Align:       req.Align,
		NewRect:     req.NewRect,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success)
}

func (s *Server) finishTranslation(c echo.Context) error {
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	report, err := sess.Finish()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Translated PDF saved to " + report.Output,
		"report":  report,
	})
}

func (s *Server) preview(c echo.Context) error {
	var req pageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	sess, err := s.session(c)
	if err != nil {
		return err
	}
	png, err := sess.Preview(int(req.PageNum), float64(req.Scale))
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="preview_page_%d.png"`, int(req.PageNum)))
	return c.Blob(http.StatusOK, "image/png", png)
}

func (s *Server) closeTranslator(c echo.Context) error {
	if err := s.sessions.CloseCurrent(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, success)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
