package domain

// Models AutoMigrate 用到的全部模型
func Models() []any {
	return []any{
		&User{}, &RefreshToken{}, &OneTimeToken{},
		&Post{}, &PostTag{}, &AuditLog{},
		&Category{}, &Tag{}, &Product{}, &Setting{},
	}
}
