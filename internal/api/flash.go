package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	flashCookie = "iconforge_flash"
	flashMaxAge = 60
	maxFlashes  = 5
)

// addFlash queues a message for the next rendered page.
func (s *Server) addFlash(c *gin.Context, message string) {
	messages := readFlashes(c)
	messages = append(messages, message)
	if len(messages) > maxFlashes {
		messages = messages[len(messages)-maxFlashes:]
	}

	raw, err := json.Marshal(messages)
	if err != nil {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookie, base64.RawURLEncoding.EncodeToString(raw), flashMaxAge, "/", "", s.httpCfg.FlashSecure, true)
}

// popFlashes returns queued messages and clears the cookie.
func (s *Server) popFlashes(c *gin.Context) []string {
	messages := readFlashes(c)
	if len(messages) > 0 {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(flashCookie, "", -1, "/", "", s.httpCfg.FlashSecure, true)
	}
	return messages
}

func readFlashes(c *gin.Context) []string {
	value, err := c.Cookie(flashCookie)
	if err != nil || value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var messages []string
	if err := json.Unmarshal(raw, &messages); err != nil {
		return nil
	}
	return messages
}
