package portal

// Operation classes recorded in user logs
const (
	ClassImage    = 1
	ClassBatch    = 2
	ClassRealtime = 3
)

// Unlimited is the quota value meaning "no limit"
const Unlimited = -1

// LoginResult is the flat login response body
type LoginResult struct {
	Token              string `json:"token"`
	UserID             int    `json:"user_id"`
	Username           string `json:"username"`
	UserType           string `json:"user_type"`
	ImageLimit         *int   `json:"imagelimit,omitempty"`
	BatchLimit         *int   `json:"batchlimit,omitempty"`
	RealtimePermission *int   `json:"realtimePermission,omitempty"`
	IsBanned           *int   `json:"isbannd,omitempty"`
}

// UserInfo is the caller's own account with usage counters
type UserInfo struct {
	ID                 int    `json:"id"`
	Username           string `json:"username"`
	ImageLimit         int    `json:"imagelimit"`
	BatchLimit         int    `json:"batchlimit"`
	RealtimePermission int    `json:"realtimePermission"`
	IsBanned           int    `json:"isbannd"`
	ImageUsed          int    `json:"imageUsed"`
	BatchUsed          int    `json:"batchUsed"`
	UpdateTime         string `json:"update_time"`
}

// Permissions is the reduced account view used before opening realtime detection
type Permissions struct {
	RealtimePermission int    `json:"realtimePermission"`
	IsBanned           int    `json:"isbannd"`
	Username           string `json:"username"`
	UserID             int    `json:"user_id"`
}

// User is an account as listed by admins
type User struct {
	ID                 int    `json:"id"`
	Username           string `json:"username"`
	ImageLimit         int    `json:"imagelimit"`
	BatchLimit         int    `json:"batchlimit"`
	RealtimePermission int    `json:"realtimePermission"`
	IsBanned           int    `json:"isbannd"`
	UpdateTime         string `json:"update_time"`
}

// UserLog is one recognition operation
type UserLog struct {
	ID       int    `json:"id"`
	UserID   int    `json:"user_id"`
	Username string `json:"username,omitempty"`
	Time     string `json:"time"`
	Class    int    `json:"class"`
	Quantity int    `json:"quantity"`
	Remain   int    `json:"remain"`
}

// AdminLog is one admin action
type AdminLog struct {
	ID            int    `json:"id"`
	AdminUsername string `json:"admin_username"`
	Time          string `json:"time"`
	Log           string `json:"log"`
}

// Page is a paginated list
type Page[T any] struct {
	Items []T
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// PageQuery selects a page of a list endpoint
type PageQuery struct {
	Page  int `json:"page,omitempty" validate:"omitempty,min=1"`
	Limit int `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
}

// Statistics is the admin dashboard summary
type Statistics struct {
	UserCount        int `json:"user_count"`
	ActiveUsersToday int `json:"active_users_today"`
	TodayOperations  struct {
		ImageRecognition  int `json:"image_recognition"`
		BatchProcessing   int `json:"batch_processing"`
		RealtimeDetection int `json:"realtime_detection"`
		TotalTraffic      int `json:"total_traffic"`
	} `json:"today_operations"`
	TrendData []struct {
		Date  string `json:"date"`
		Class int    `json:"class"`
		Count int    `json:"count"`
	} `json:"trend_data"`
	PermissionStats struct {
		UnlimitedImageUsers  int `json:"unlimited_image_users"`
		UnlimitedBatchUsers  int `json:"unlimited_batch_users"`
		RealtimeEnabledUsers int `json:"realtime_enabled_users"`
	} `json:"permission_stats"`
}

// NewUser is the admin create-user payload
type NewUser struct {
	Username           string `json:"username" validate:"required,min=3,max=50"`
	Password           string `json:"password" validate:"required,min=6"`
	ImageLimit         int    `json:"imagelimit" validate:"min=-1"`
	BatchLimit         int    `json:"batchlimit" validate:"min=-1"`
	RealtimePermission int    `json:"realtimePermission" validate:"oneof=0 1"`
}

// UserUpdate changes quotas or permissions; nil fields are left alone
type UserUpdate struct {
	ImageLimit         *int `json:"imagelimit,omitempty" validate:"omitempty,min=-1"`
	BatchLimit         *int `json:"batchlimit,omitempty" validate:"omitempty,min=-1"`
	RealtimePermission *int `json:"realtimePermission,omitempty" validate:"omitempty,oneof=0 1"`
}

// LimitDelta adjusts remaining quotas relative to their current values
type LimitDelta struct {
	ImageDelta *int `json:"imagelimit_delta,omitempty"`
	BatchDelta *int `json:"batchlimit_delta,omitempty"`
}

// TaskProgress is the state of a batch task
type TaskProgress struct {
	CurrentFileIndex    int               `json:"current_file_index"`
	TotalFiles          int               `json:"total_files"`
	CurrentFileName     string            `json:"current_file_name"`
	CurrentFileProgress float64           `json:"current_file_progress"`
	OverallProgress     float64           `json:"overall_progress"`
	Stage               string            `json:"stage"`
	StartTime           float64           `json:"start_time"`
	Error               string            `json:"error,omitempty"`
	ProcessedFiles      []BatchFileResult `json:"processed_files,omitempty"`
}

// Point is a position relative to the image size, 0 to 1 on each axis
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one recognized object
type Detection struct {
	ClassID       int     `json:"class_id,omitempty"`
	ClassName     string  `json:"class_name,omitempty"`
	AssetCategory string  `json:"asset_category"`
	DefectStatus  string  `json:"defect_status"`
	Confidence    float64 `json:"confidence"`
	BBox          []int   `json:"bbox,omitempty"`
	Center        Point   `json:"center"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
}

// Defective reports whether the defect classifier flagged the object
func (d Detection) Defective() bool {
	return d.DefectStatus == "缺陷"
}

// Recognition is the model output for one image
type Recognition struct {
	Predictions     []Detection `json:"predictions"`
	DetectedObjects int         `json:"detected_objects"`
	InferenceTimeMS float64     `json:"inference_time_ms"`
	// AnnotatedImage is a data URL, only present when annotation was requested
	AnnotatedImage string `json:"annotated_image,omitempty"`
}

// Prediction is the response to a single image upload
type Prediction struct {
	Filename string      `json:"filename"`
	Result   Recognition `json:"data"`
	// RemainingLimit is the image quota left after this call, Unlimited for unlimited accounts
	RemainingLimit int `json:"remaining_limit"`
}

// BatchStart acknowledges a batch upload. Follow TaskID with Progress or WatchProgress.
type BatchStart struct {
	TaskID         string  `json:"task_id"`
	Message        string  `json:"message"`
	RequiredQuota  float64 `json:"required_quota"`
	RemainingQuota float64 `json:"remaining_quota"`
}

// BatchFileResult is the outcome for one file of a finished batch
type BatchFileResult struct {
	Filename        string  `json:"filename"`
	Success         bool    `json:"success"`
	FileType        string  `json:"file_type,omitempty"`
	DetectedObjects int     `json:"detected_objects,omitempty"`
	Error           string  `json:"error,omitempty"`
	InferenceTimeMS float64 `json:"inference_time_ms,omitempty"`
}

// RealtimeUsage reports a realtime session. Duration in seconds wins over Quantity;
// with neither set the portal records one detection.
type RealtimeUsage struct {
	Quantity int `json:"quantity" validate:"min=0"`
	Duration int `json:"duration" validate:"min=0"`
}

// Finished reports whether the task reached a terminal stage
func (p TaskProgress) Finished() bool {
	switch p.Stage {
	case "completed", "cancelled", "failed", "error":
		return true
	}
	return false
}
