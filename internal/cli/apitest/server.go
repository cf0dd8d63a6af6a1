// Package apitest runs an in-process fake of the recognition portal API for tests.
package apitest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Account is a portal account known to the fake
type Account struct {
	ID                 int
	Username           string
	PasswordHash       string
	UserType           string
	ImageLimit         int
	BatchLimit         int
	RealtimePermission int
	Banned             bool
}

// Server is a fake portal backed by gin
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*Account // keyed by user type + username
	tokens   map[string]*Account
	tasks    map[string]map[string]any
	nextID   int
	seq      int
	taskSeq  int
	requests []*http.Request
	realtime []RealtimeLog

	// batchPolls is how many progress reads an uploaded batch stays processing for.
	// Negative keeps it processing until FinishTask.
	batchPolls int
	countdown  map[string]int
}

// RealtimeLog is one usage report received on /api/realtime/log
type RealtimeLog struct {
	UserID   int
	Quantity int
	Duration int
}

// Hash is the digest clients send as the login password
func Hash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// NewServer starts a fake portal with one admin ("admin"/"admin123") and one user ("alice"/"alice123")
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	s := &Server{
		accounts:   make(map[string]*Account),
		tokens:     make(map[string]*Account),
		tasks:      make(map[string]map[string]any),
		countdown:  make(map[string]int),
		batchPolls: -1,
		nextID:     1,
	}
	s.AddAccount(Account{Username: "admin", PasswordHash: Hash("admin123"), UserType: "admin"})
	s.AddAccount(Account{Username: "alice", PasswordHash: Hash("alice123"), UserType: "user", ImageLimit: 10, BatchLimit: 5})

	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.record)

	auth := r.Group("/api/auth")
	auth.POST("/login", s.login)
	auth.POST("/register", s.register)
	auth.POST("/change_password", s.requireAuth(""), s.changePassword)

	user := r.Group("/api/user", s.requireAuth("user"))
	user.GET("/info", s.userInfo)
	user.GET("/logs", s.userLogs)
	user.GET("/check-permissions", s.checkPermissions)

	admin := r.Group("/api/admin", s.requireAuth("admin"))
	admin.GET("/users", s.listUsers)
	admin.POST("/user", s.createUser)
	admin.PUT("/user/:id", s.updateUser)
	admin.DELETE("/user/:id", s.deleteUser)
	admin.PUT("/user/:id/status", s.setStatus)
	admin.POST("/user/:id/limits", s.adjustLimits)
	admin.GET("/logs", s.adminLogs)
	admin.GET("/user_logs/:id", s.userLogsFor)
	admin.GET("/statistics", s.statistics)

	recognition := r.Group("/api", s.requireAuth("user"))
	recognition.POST("/predict", s.predict)
	recognition.POST("/batch", s.batch)
	recognition.POST("/realtime", s.realtimeAnnotate)
	recognition.POST("/realtime/detect", s.realtimeDetect)
	recognition.POST("/realtime/log", s.realtimeLog)

	tasks := r.Group("/api/tasks")
	tasks.GET("/progress/:id", s.taskProgress)
	tasks.POST("/cancel/:id", s.cancelTask)

	return r
}

func accountKey(userType, username string) string {
	return userType + ":" + username
}

// AddAccount registers an account and returns its id
func (s *Server) AddAccount(a Account) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.nextID
	s.nextID++
	s.accounts[accountKey(a.UserType, a.Username)] = &a
	return a.ID
}

// IssueToken logs an account in without going through /login
func (s *Server) IssueToken(userType, username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.accounts[accountKey(userType, username)])
}

func (s *Server) issueLocked(a *Account) string {
	s.seq++
	token := fmt.Sprintf("token-%s-%d", a.Username, s.seq)
	s.tokens[token] = a
	return token
}

// ExpireAll invalidates every token, as the portal does after three days
func (s *Server) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]*Account)
}

// SetTask stores progress for a batch task id
func (s *Server) SetTask(id string, progress map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = progress
}

// FinishTask marks a batch task completed, as the portal's background worker does
func (s *Server) FinishTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked(id)
}

func (s *Server) finishLocked(id string) {
	p, ok := s.tasks[id]
	if !ok {
		return
	}
	p["stage"] = "completed"
	p["overall_progress"] = 100.0
	p["current_file_index"] = p["total_files"]
	delete(s.countdown, id)
}

// CompleteBatchesAfter makes uploaded batches finish on their own after n progress reads
func (s *Server) CompleteBatchesAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchPolls = n
}

// Task returns the stored progress of a batch task, or nil
func (s *Server) Task(id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

// RealtimeLogs returns the usage reports received so far
func (s *Server) RealtimeLogs() []RealtimeLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RealtimeLog(nil), s.realtime...)
}

// Requests returns every request received so far
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// LastRequest returns the most recent request, or nil
func (s *Server) LastRequest() *http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	return s.requests[len(s.requests)-1]
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.requests = append(s.requests, c.Request.Clone(c.Request.Context()))
	s.mu.Unlock()
	c.Next()
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

const bearerPrefix = "Bearer "

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
)

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func (s *Server) requireAuth(userType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			fail(c, http.StatusUnauthorized, "认证失败，请重新登录")
			return
		}

		s.mu.Lock()
		a, ok := s.tokens[token]
		s.mu.Unlock()

		if !ok || (userType != "" && a.UserType != userType) {
			fail(c, http.StatusUnauthorized, "认证失败，请重新登录")
			return
		}
		if a.Banned {
			fail(c, http.StatusForbidden, "您的账户已被封禁，请联系管理员")
			return
		}
		c.Set("account", a)
		c.Next()
	}
}

func current(c *gin.Context) *Account {
	return c.MustGet("account").(*Account)
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		UserType string `json:"user_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求数据格式错误")
		return
	}
	if req.UserType == "" {
		req.UserType = "user"
	}

	s.mu.Lock()
	a, ok := s.accounts[accountKey(req.UserType, req.Username)]
	if !ok || a.PasswordHash != req.Password {
		s.mu.Unlock()
		fail(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}
	token := s.issueLocked(a)
	s.mu.Unlock()

	resp := gin.H{
		"success":   true,
		"message":   "登录成功",
		"token":     token,
		"user_id":   a.ID,
		"username":  a.Username,
		"user_type": a.UserType,
	}
	if a.UserType == "user" {
		resp["imagelimit"] = a.ImageLimit
		resp["batchlimit"] = a.BatchLimit
		resp["realtimePermission"] = a.RealtimePermission
		resp["isbannd"] = boolInt(a.Banned)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[accountKey("user", req.Username)]
	s.mu.Unlock()
	if exists {
		fail(c, http.StatusBadRequest, "用户名已存在")
		return
	}

	s.AddAccount(Account{Username: req.Username, PasswordHash: Hash(req.Password), UserType: "user", ImageLimit: 10, BatchLimit: 5})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "注册成功"})
}

func (s *Server) changePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求数据格式错误")
		return
	}

	a := current(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.PasswordHash != Hash(req.OldPassword) {
		fail(c, http.StatusBadRequest, "旧密码不正确")
		return
	}
	a.PasswordHash = Hash(req.NewPassword)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "密码修改成功"})
}

func (s *Server) userInfo(c *gin.Context) {
	a := current(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"id":                 a.ID,
		"username":           a.Username,
		"imagelimit":         a.ImageLimit,
		"batchlimit":         a.BatchLimit,
		"realtimePermission": a.RealtimePermission,
		"isbannd":            boolInt(a.Banned),
		"imageUsed":          3,
		"batchUsed":          1,
		"update_time":        "2024-05-01 08:30:00",
	}})
}

func (s *Server) userLogs(c *gin.Context) {
	a := current(c)
	page, limit := pageArgs(c, 10)
	logs := []gin.H{
		{"id": 2, "user_id": a.ID, "time": "2024-05-01 09:00:00", "class": 2, "quantity": 4, "remain": 4},
		{"id": 1, "user_id": a.ID, "time": "2024-05-01 08:45:00", "class": 1, "quantity": 1, "remain": 9},
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"logs": logs, "total": len(logs), "page": page, "limit": limit,
	}})
}

func (s *Server) checkPermissions(c *gin.Context) {
	a := current(c)
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"realtimePermission": a.RealtimePermission,
		"isbannd":            boolInt(a.Banned),
		"username":           a.Username,
		"user_id":            a.ID,
	}})
}

func (s *Server) listUsers(c *gin.Context) {
	page, limit := pageArgs(c, 10)

	s.mu.Lock()
	var users []gin.H
	var accounts []*Account
	for _, a := range s.accounts {
		if a.UserType == "user" {
			accounts = append(accounts, a)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID > accounts[j].ID })
	for _, a := range accounts {
		users = append(users, gin.H{
			"id":                 a.ID,
			"username":           a.Username,
			"imagelimit":         a.ImageLimit,
			"batchlimit":         a.BatchLimit,
			"realtimePermission": a.RealtimePermission,
			"isbannd":            boolInt(a.Banned),
			"update_time":        nil,
		})
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"users": users, "total": len(users), "page": page, "limit": limit,
	}})
}

func (s *Server) createUser(c *gin.Context) {
	var req struct {
		Username           string `json:"username"`
		Password           string `json:"password"`
		ImageLimit         int    `json:"imagelimit"`
		BatchLimit         int    `json:"batchlimit"`
		RealtimePermission int    `json:"realtimePermission"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求数据格式错误")
		return
	}
	s.mu.Lock()
	_, exists := s.accounts[accountKey("user", req.Username)]
	s.mu.Unlock()
	if exists {
		fail(c, http.StatusConflict, "用户名已存在")
		return
	}

	id := s.AddAccount(Account{
		Username:           req.Username,
		PasswordHash:       Hash(req.Password),
		UserType:           "user",
		ImageLimit:         req.ImageLimit,
		BatchLimit:         req.BatchLimit,
		RealtimePermission: req.RealtimePermission,
	})
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "用户创建成功", "data": gin.H{"id": id, "username": req.Username}})
}

func (s *Server) findByID(c *gin.Context) (*Account, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "用户不存在")
		return nil, false
	}
	for _, a := range s.accounts {
		if a.ID == id && a.UserType == "user" {
			return a, true
		}
	}
	fail(c, http.StatusNotFound, "用户不存在")
	return nil, false
}

func (s *Server) updateUser(c *gin.Context) {
	var req map[string]int
	if err := c.ShouldBindJSON(&req); err != nil || len(req) == 0 {
		fail(c, http.StatusBadRequest, "没有需要更新的字段")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findByID(c)
	if !ok {
		return
	}
	if v, ok := req["imagelimit"]; ok {
		a.ImageLimit = v
	}
	if v, ok := req["batchlimit"]; ok {
		a.BatchLimit = v
	}
	if v, ok := req["realtimePermission"]; ok {
		a.RealtimePermission = v
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "用户信息更新成功"})
}

func (s *Server) deleteUser(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findByID(c)
	if !ok {
		return
	}
	delete(s.accounts, accountKey(a.UserType, a.Username))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "用户删除成功"})
}

func (s *Server) setStatus(c *gin.Context) {
	var req struct {
		Banned bool `json:"banned"`
	}
	_ = c.ShouldBindJSON(&req)

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findByID(c)
	if !ok {
		return
	}
	a.Banned = req.Banned
	action := "解封"
	if req.Banned {
		action = "封禁"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": action + "用户成功"})
}

func (s *Server) adjustLimits(c *gin.Context) {
	var req struct {
		ImageDelta *int `json:"imagelimit_delta"`
		BatchDelta *int `json:"batchlimit_delta"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "请求数据格式错误")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.findByID(c)
	if !ok {
		return
	}
	if req.ImageDelta != nil && a.ImageLimit != -1 {
		a.ImageLimit = max(0, a.ImageLimit+*req.ImageDelta)
	}
	if req.BatchDelta != nil && a.BatchLimit != -1 {
		a.BatchLimit = max(0, a.BatchLimit+*req.BatchDelta)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "用户限额调整成功"})
}

func (s *Server) adminLogs(c *gin.Context) {
	page, limit := pageArgs(c, 10)
	logs := []gin.H{
		{"id": 1, "admin_username": "admin", "time": "2024-05-01 10:00:00", "log": "创建用户: alice"},
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"logs": logs, "total": len(logs), "page": page, "limit": limit,
	}})
}

// userLogsFor serves both /user_logs/all and /user_logs/:id
func (s *Server) userLogsFor(c *gin.Context) {
	page, limit := pageArgs(c, 10)

	s.mu.Lock()
	var owners []*Account
	if c.Param("id") == "all" {
		for _, a := range s.accounts {
			if a.UserType == "user" {
				owners = append(owners, a)
			}
		}
		sort.Slice(owners, func(i, j int) bool { return owners[i].ID < owners[j].ID })
	} else {
		a, ok := s.findByID(c)
		if !ok {
			s.mu.Unlock()
			return
		}
		owners = append(owners, a)
	}
	s.mu.Unlock()

	logs := []gin.H{}
	for i, a := range owners {
		logs = append(logs, gin.H{
			"id": i + 1, "user_id": a.ID, "username": a.Username,
			"time": "2024-05-01 09:00:00", "class": 1, "quantity": 1, "remain": a.ImageLimit,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"logs": logs, "total": len(logs), "page": page, "limit": limit,
	}})
}

func (s *Server) statistics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"user_count":         1,
		"active_users_today": 1,
		"today_operations": gin.H{
			"image_recognition": 3, "batch_processing": 1, "realtime_detection": 0, "total_traffic": 4,
		},
		"trend_data": []gin.H{{"date": "2024-05-01", "class": 1, "count": 3}},
		"permission_stats": gin.H{
			"unlimited_image_users": 0, "unlimited_batch_users": 0, "realtime_enabled_users": 0,
		},
	}})
}

func (s *Server) taskProgress(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	if n, counting := s.countdown[id]; counting {
		if n <= 0 {
			s.finishLocked(id)
		} else {
			s.countdown[id] = n - 1
		}
	}
	p, ok := s.tasks[id]
	if ok {
		snapshot := make(map[string]any, len(p))
		for k, v := range p {
			snapshot[k] = v
		}
		p = snapshot
	}
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "任务不存在或已过期", "error_type": "task_not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "progress": p})
}

func (s *Server) cancelTask(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.tasks[id]
	if !ok || p["stage"] == "completed" {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": fmt.Sprintf("任务 %s 不存在或已完成", id)})
		return
	}
	p["stage"] = "cancelled"
	c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("任务 %s 已取消", id)})
}

func pageArgs(c *gin.Context, defaultLimit int) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	return page, limit
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AnnotatedPNG is the image body returned by the fake annotation endpoint
var AnnotatedPNG = []byte("\x89PNG fake annotated frame")

func allowedExtension(name string, video bool) bool {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "png", "jpg", "jpeg", "bmp":
		return true
	case "mp4", "avi", "mov", "mkv", "wmv":
		return video
	}
	return false
}

func detections() []gin.H {
	return []gin.H{
		{
			"bbox": []int{10, 20, 110, 220}, "class_id": 0, "class_name": "insulator", "asset_category": "绝缘子",
			"defect_status": "正常", "confidence": 0.91, "center": gin.H{"x": 0.25, "y": 0.3}, "width": 0.2, "height": 0.4,
		},
		{
			"bbox": []int{300, 40, 360, 90}, "class_id": 3, "class_name": "damper", "asset_category": "防震锤",
			"defect_status": "缺陷", "confidence": 0.78, "center": gin.H{"x": 0.66, "y": 0.13}, "width": 0.12, "height": 0.1,
		},
	}
}

func (s *Server) predict(c *gin.Context) {
	a := current(c)

	s.mu.Lock()
	exhausted := a.ImageLimit == 0
	s.mu.Unlock()
	if exhausted {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":         false,
			"message":         "图片识别次数已用完，请联系管理员增加次数",
			"error_type":      "quota_exceeded",
			"remaining_limit": 0,
		})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "请选择要上传的文件")
		return
	}
	if !allowedExtension(file.Filename, false) {
		fail(c, http.StatusBadRequest, "不支持的文件格式，请上传JPG、PNG、BMP格式的图片")
		return
	}

	s.mu.Lock()
	remaining := -1
	if a.ImageLimit != -1 {
		a.ImageLimit--
		remaining = a.ImageLimit
	}
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "识别完成",
		"filename": file.Filename,
		"data": gin.H{
			"predictions":       detections(),
			"inference_time_ms": 42.5,
			"detected_objects":  2,
		},
		"remaining_limit": remaining,
	})
}

func (s *Server) batch(c *gin.Context) {
	a := current(c)

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		fail(c, http.StatusBadRequest, "请选择要上传的文件")
		return
	}
	files := form.File["files"]
	if len(files) > 100 {
		fail(c, http.StatusBadRequest, "最多只能处理100个文件")
		return
	}

	var total int64
	processed := make([]gin.H, 0, len(files))
	for _, f := range files {
		total += f.Size
		switch {
		case !allowedExtension(f.Filename, true):
			processed = append(processed, gin.H{"filename": f.Filename, "success": false, "error": "不支持的文件格式"})
		case allowedExtension(f.Filename, false):
			processed = append(processed, gin.H{"filename": f.Filename, "success": true, "file_type": "image", "detected_objects": 2})
		default:
			processed = append(processed, gin.H{"filename": f.Filename, "success": true, "file_type": "video", "detected_objects": 5})
		}
	}
	if total > 100*1024*1024 {
		fail(c, http.StatusBadRequest, "文件总大小不能超过100MB")
		return
	}
	required := float64(total) / (1024 * 1024)

	s.mu.Lock()
	defer s.mu.Unlock()
	if a.BatchLimit != -1 && float64(a.BatchLimit) < required {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":         false,
			"message":         fmt.Sprintf("流量不足！需要 %.3f MB，剩余 %.3f MB", required, float64(a.BatchLimit)),
			"error_type":      "quota_exceeded",
			"required_quota":  required,
			"remaining_quota": a.BatchLimit,
		})
		return
	}

	s.taskSeq++
	id := fmt.Sprintf("batch_%08x", s.taskSeq)
	s.tasks[id] = map[string]any{
		"current_file_index": 0,
		"total_files":        len(files),
		"overall_progress":   0.0,
		"stage":              "processing",
		"processed_files":    processed,
	}
	if s.batchPolls >= 0 {
		s.countdown[id] = s.batchPolls
	}

	remaining := -1.0
	if a.BatchLimit != -1 {
		remaining = max(0, float64(a.BatchLimit)-required)
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         fmt.Sprintf("批量处理已开始，预计消耗流量 %.3f MB", required),
		"task_id":         id,
		"required_quota":  required,
		"remaining_quota": remaining,
	})
}

func (s *Server) realtimeAllowed(c *gin.Context) bool {
	a := current(c)
	s.mu.Lock()
	allowed := a.RealtimePermission == 1
	s.mu.Unlock()
	if !allowed {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":    false,
			"message":    "您没有实时检测权限",
			"error_type": "permission_denied",
		})
	}
	return allowed
}

func (s *Server) realtimeFrame(c *gin.Context) (string, bool) {
	if !s.realtimeAllowed(c) {
		return "", false
	}
	file, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "请选择要上传的文件")
		return "", false
	}
	if !allowedExtension(file.Filename, false) {
		fail(c, http.StatusBadRequest, "不支持的文件格式")
		return "", false
	}
	return file.Filename, true
}

func (s *Server) realtimeDetect(c *gin.Context) {
	if _, ok := s.realtimeFrame(c); !ok {
		return
	}

	predictions := gin.H{}
	for i, d := range detections() {
		predictions[strconv.Itoa(i)] = gin.H{
			"asset_category": d["asset_category"],
			"defect_status":  d["defect_status"],
			"confidence":     d["confidence"],
			"center":         d["center"],
			"width":          d["width"],
			"height":         d["height"],
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{
		"predictions":       predictions,
		"inference_time_ms": 12.3,
		"detected_objects":  len(predictions),
	}})
}

func (s *Server) realtimeAnnotate(c *gin.Context) {
	filename, ok := s.realtimeFrame(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "实时检测完成",
		"filename": filename,
		"data": gin.H{
			"annotated_image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(AnnotatedPNG),
		},
	})
}

func (s *Server) realtimeLog(c *gin.Context) {
	var req struct {
		Quantity int `json:"quantity"`
		Duration int `json:"duration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusInternalServerError, "记录使用失败")
		return
	}
	if !s.realtimeAllowed(c) {
		return
	}

	a := current(c)
	s.mu.Lock()
	s.realtime = append(s.realtime, RealtimeLog{UserID: a.ID, Quantity: req.Quantity, Duration: req.Duration})
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "使用记录已保存", "data": gin.H{
		"quantity": req.Quantity, "duration": req.Duration, "user_id": a.ID,
	}})
}
