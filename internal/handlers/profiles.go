package handlers

import (
	"errors"
	"io"
	"net/http"

	"uvchamber/internal/profile"
	"uvchamber/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusSaved   = "saved"
	statusDeleted = "deleted"

	// Profile documents are small; anything bigger than this is not a
	// profile.
	maxImportBytes = 1 << 20 // 1 MB
)

// @Summary      List profiles
// @Tags         profiles
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, profiles"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/profiles [get]
// @Security     BearerAuth
func (h *Handler) listProfiles(c *gin.Context) {
	list, err := h.services.Library.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to list profiles", "profiles_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(list),
		"profiles": list,
	})
}

// @Summary      Get profile
// @Tags         profiles
// @Produce      json
// @Param        name  path  string  true  "Profile name"
// @Success      200   {object}  map[string]interface{}
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/profiles/{name} [get]
// @Security     BearerAuth
func (h *Handler) getProfile(c *gin.Context) {
	name := c.Param("name")
	p, err := h.services.Library.Get(c.Request.Context(), name)
	if err != nil {
		h.commandError(c, "profiles_get_failed", err, "profile", name)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Save profile
// @Description  Validates and stores the profile; an existing name is overwritten, an empty name gets the next free P-NN.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Param        body  body   profile.Profile  true  "Profile"
// @Success      200   {object}  map[string]interface{}  "status, profile"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/profiles [post]
// @Security     BearerAuth
func (h *Handler) saveProfile(c *gin.Context) {
	var p profile.Profile
	if ok := h.bindJSONOrBadRequest(c, &p); !ok {
		return
	}
	saved, err := h.services.Library.Save(c.Request.Context(), p)
	if err != nil {
		h.commandError(c, "profiles_save_failed", err, "profile", p.Name)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSaved,
		"profile": saved,
	})
}

// @Summary      Delete profile
// @Tags         profiles
// @Produce      json
// @Param        name  path  string  true  "Profile name"
// @Success      200   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/profiles/{name} [delete]
// @Security     BearerAuth
func (h *Handler) deleteProfile(c *gin.Context) {
	name := c.Param("name")
	if err := h.services.Library.Delete(c.Request.Context(), name); err != nil {
		h.commandError(c, "profiles_delete_failed", err, "profile", name)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusDeleted})
}

// @Summary      Import profile
// @Description  Accepts a YAML profile document, validates and stores it.
// @Tags         profiles
// @Accept       plain
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, profile"
// @Failure      400  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      422  {object}  map[string]string
// @Router       /api/v1/profiles/import [post]
// @Security     BearerAuth
func (h *Handler) importProfile(c *gin.Context) {
	doc, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if len(doc) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty document"})
		return
	}
	p, err := h.services.Library.Import(c.Request.Context(), doc)
	if err != nil {
		if errors.Is(err, service.ErrBadDocument) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.commandError(c, "profiles_import_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusSaved,
		"profile": p,
	})
}

// @Summary      Export profile
// @Description  Returns the stored profile as a YAML document.
// @Tags         profiles
// @Produce      plain
// @Param        name  path  string  true  "Profile name"
// @Success      200   {string}  string  "YAML document"
// @Failure      401   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/v1/profiles/{name}/export [get]
// @Security     BearerAuth
func (h *Handler) exportProfile(c *gin.Context) {
	name := c.Param("name")
	doc, err := h.services.Library.Export(c.Request.Context(), name)
	if err != nil {
		h.commandError(c, "profiles_export_failed", err, "profile", name)
		return
	}
	c.Data(http.StatusOK, "application/yaml", doc)
}
