package usercontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "isAdmin"
	KeyPackage       = "package"
	KeyFromProtected = "from_protected"

	localsKey = "USER_CONTEXT"
)
