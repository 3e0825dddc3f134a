package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"skillquiz-service/internal/app"
	"skillquiz-service/internal/domain"
)

// UserHeader names the caller on REST requests.
const UserHeader = "X-User-ID"

const userKey = "userID"

// RESTHandler serves the catalog, community quizzes, moderation, profiles and results.
type RESTHandler struct {
	provider   *app.QuestionProvider
	moderation *app.ModerationService
	profiles   *app.ProfileService
	results    *app.ResultService
	quizzes    *app.QuizService
}

func NewRESTHandler(provider *app.QuestionProvider, moderation *app.ModerationService, profiles *app.ProfileService, results *app.ResultService, quizzes *app.QuizService) *RESTHandler {
	return &RESTHandler{provider: provider, moderation: moderation, profiles: profiles, results: results, quizzes: quizzes}
}

type sessionStatus struct {
	UserID string    `json:"userId"`
	Live   bool      `json:"live"`
	State  app.State `json:"state"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type profileRequest struct {
	Username string `json:"username"`
}

// Register mounts the API under r.
func (h *RESTHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/categories", h.listCategories)
		api.GET("/categories/:category/questions", h.categoryQuestions)
		api.GET("/categories/:category/quizzes", h.categoryQuizzes)
		api.GET("/quizzes/:id", h.getQuiz)
		api.GET("/leaderboard", h.leaderboard)
	}

	user := api.Group("", requireUser())
	{
		user.POST("/quizzes", h.submitQuiz)
		user.GET("/quizzes/mine", h.myQuizzes)
		user.GET("/profile", h.getProfile)
		user.POST("/profile", h.ensureProfile)
		user.GET("/results", h.listResults)
	}

	admin := api.Group("/admin", requireUser())
	{
		admin.GET("/quizzes", h.adminList)
		admin.GET("/quizzes/history", h.adminHistory)
		admin.GET("/sessions/:userId", h.adminSession)
		admin.POST("/quizzes/:id/approve", h.approve)
		admin.POST("/quizzes/:id/reject", h.reject)
		admin.POST("/quizzes/:id/delete", h.remove)
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(UserHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader + " header"})
			return
		}
		c.Set(userKey, userID)
		c.Next()
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s must be an integer", name)
	}
	return n, nil
}

func (h *RESTHandler) listCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.provider.Categories())
}

func (h *RESTHandler) categoryQuestions(c *gin.Context) {
	difficulty, err := domain.ParseDifficulty(c.Query("difficulty"))
	if err != nil {
		respondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	questions, err := h.provider.GetQuestions(c.Request.Context(), c.Param("category"), difficulty, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

func (h *RESTHandler) categoryQuizzes(c *gin.Context) {
	quizzes, err := h.provider.CommunityQuizzes(c.Request.Context(), c.Param("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *RESTHandler) getQuiz(c *gin.Context) {
	quiz, err := h.provider.CommunityQuiz(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *RESTHandler) leaderboard(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := h.profiles.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *RESTHandler) submitQuiz(c *gin.Context) {
	var def domain.QuizDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		respondError(c, domain.Validationf("invalid quiz body: %v", err))
		return
	}
	quiz, err := h.moderation.Submit(c.Request.Context(), c.GetString(userKey), def)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, quiz)
}

func (h *RESTHandler) myQuizzes(c *gin.Context) {
	status, err := domain.ParseModerationStatus(c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	quizzes, err := h.moderation.Mine(c.Request.Context(), c.GetString(userKey), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *RESTHandler) getProfile(c *gin.Context) {
	view, err := h.profiles.Get(c.Request.Context(), c.GetString(userKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *RESTHandler) ensureProfile(c *gin.Context) {
	var req profileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.Validationf("invalid profile body: %v", err))
			return
		}
	}
	view, err := h.profiles.Ensure(c.Request.Context(), c.GetString(userKey), req.Username)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *RESTHandler) listResults(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondError(c, err)
		return
	}
	records, err := h.results.History(c.Request.Context(), c.GetString(userKey), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *RESTHandler) adminList(c *gin.Context) {
	status, err := domain.ParseModerationStatus(c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	quizzes, err := h.moderation.List(c.Request.Context(), c.GetString(userKey), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

func (h *RESTHandler) adminHistory(c *gin.Context) {
	quizzes, err := h.moderation.History(c.Request.Context(), c.GetString(userKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quizzes)
}

// adminSession reports whether a player holds a session, on this instance
// or, with Redis configured, on any instance.
func (h *RESTHandler) adminSession(c *gin.Context) {
	ctx := c.Request.Context()
	actor := c.GetString(userKey)
	if !h.moderation.IsAdmin(ctx, actor) {
		respondError(c, domain.Forbiddenf("user %s is not an admin", actor))
		return
	}
	userID := c.Param("userId")
	live, err := h.quizzes.Live(ctx, userID)
	if err != nil {
		respondError(c, domain.PersistenceError("session presence", err))
		return
	}
	c.JSON(http.StatusOK, sessionStatus{
		UserID: userID,
		Live:   live,
		State:  h.quizzes.Snapshot(ctx, userID).State,
	})
}

func (h *RESTHandler) approve(c *gin.Context) {
	quiz, err := h.moderation.Approve(c.Request.Context(), c.GetString(userKey), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *RESTHandler) reject(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	quiz, err := h.moderation.Reject(c.Request.Context(), c.GetString(userKey), c.Param("id"), reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func (h *RESTHandler) remove(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	quiz, err := h.moderation.Delete(c.Request.Context(), c.GetString(userKey), c.Param("id"), reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quiz)
}

func bindReason(c *gin.Context) (string, bool) {
	var req reasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, domain.Validationf("invalid body: %v", err))
		return "", false
	}
	return req.Reason, true
}
