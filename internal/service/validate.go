package service

import "posto-admin/internal/core/validate"

// validateInput handler 已经做过绑定校验，这里保证直接调用 service 时规则一致
func validateInput(in any) error { return validate.Struct(in) }
