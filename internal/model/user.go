package model

// User はカタログ/認証ゲートウェイのユーザー情報を表す。
// トークンは含めない。
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Image     string `json:"image"`
}

// LoginCredentials はログインリクエストのボディ。
type LoginCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair はアクセストークンとリフレッシュトークンの組。
// Token Store以外に渡してはならない。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResponse は上流ログインAPIのレスポンス。
type AuthResponse struct {
	User
	TokenPair
}

// MessageResponse はメッセージのみのレスポンス。
type MessageResponse struct {
	Message string `json:"message"`
}
