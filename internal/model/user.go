package model

// UserRole 由身份系统签发在 token 中，引擎只读取
type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)
