package models

import "time"

// Image — обработанное изображение, как его отдаёт бэкенд.
type Image struct {
	ID                int64     `json:"id"`
	ImageFile         string    `json:"image_file"`
	OwnerUsername     string    `json:"owner_username"`
	UploadedAt        time.Time `json:"uploaded_at"`
	GeneralCategories []string  `json:"general_categories"`
	DetailedLabels    []string  `json:"detailed_labels"`
	IsPublic          bool      `json:"is_public"`
	Title             string    `json:"title,omitempty"`
	Price             string    `json:"price,omitempty"`
}

// CategoryGroup — изображения галереи, сгруппированные по общей категории.
type CategoryGroup struct {
	Category string  `json:"category"`
	Images   []Image `json:"images"`
}

// ImageFilter — параметры выборки личной галереи.
type ImageFilter struct {
	Category string
	Search   string
}

// Stats — сводка библиотеки пользователя для домашнего экрана.
type Stats struct {
	ImageCount    int    `json:"image_count"`
	CategoryCount int    `json:"category_count"`
	UserSince     string `json:"user_since"`
}

// Profile — профиль продавца.
type Profile struct {
	PaymentDetails string `json:"payment_details"`
}

// SignupRequest — тело POST /api/signup/.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordChangeRequest — тело POST /api/auth/password/change/.
type PasswordChangeRequest struct {
	OldPassword  string `json:"old_password"`
	NewPassword1 string `json:"new_password1"`
	NewPassword2 string `json:"new_password2"`
}

// VisibilityRequest — тело PATCH /api/images/{id}/.
type VisibilityRequest struct {
	IsPublic bool `json:"is_public"`
}
