package user

import (
	"net/http"

	"MChat/logger"
	midsec "MChat/middleware/security"
	"MChat/module/user/model"
	"MChat/module/user/service"
	errs "MChat/tools/errs"
	"MChat/tools/security"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// Handler serves the account endpoints: register/login/logout/profile and
// the people directory. These are plain request/response and never touch
// the connection registry.
type Handler struct {
	store *service.Store
	jwt   security.Options
}

func NewHandler(store *service.Store, jwt security.Options) *Handler {
	return &Handler{store: store, jwt: jwt}
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}

	u := &model.User{Username: req.Username, Password: string(hash)}
	if err := h.store.Create(c.Request.Context(), u); err != nil {
		if errs.ErrDuplicate.Is(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		logger.Errorf("[user] register err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "register failed"})
		return
	}

	h.issueToken(c, security.Identity{UserID: u.ID.Hex(), Username: u.Username})
	c.JSON(http.StatusCreated, gin.H{"id": u.ID.Hex()})
}

func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	u, err := h.store.FindByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errs.ErrRecordNotFound.Is(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no user found"})
			return
		}
		logger.Errorf("[user] login lookup err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong password"})
		return
	}

	h.issueToken(c, security.Identity{UserID: u.ID.Hex(), Username: u.Username})
	c.JSON(http.StatusCreated, gin.H{"id": u.ID.Hex()})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(security.TokenCookie, "", -1, "/", "", true, true)
	c.JSON(http.StatusOK, "ok")
}

// Profile echoes the identity bound to the cookie, 401 without one.
func (h *Handler) Profile(c *gin.Context) {
	id := midsec.IdentityFrom(c)
	if id == nil {
		c.JSON(http.StatusUnauthorized, "no valid token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"userid": id.UserID, "username": id.Username})
}

// People lists every known account as {_id, username}.
func (h *Handler) People(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		logger.Errorf("[user] people err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if list == nil {
		list = []model.PublicUser{}
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) issueToken(c *gin.Context, id security.Identity) {
	token, _, err := security.Generate(h.jwt, id)
	if err != nil {
		logger.Errorf("[user] sign token err=%v", err)
		return
	}
	maxAge := int(h.jwt.TTL.Seconds())
	c.SetSameSite(http.SameSiteNoneMode)
	c.SetCookie(security.TokenCookie, token, maxAge, "/", "", true, true)
}
