package errors

import "errors"

// ErrOptimisticLock 版本守卫未命中：条件更新影响零行，
// 说明另一事务已抢先改写该记录。服务层据此映射为
// "已终态"或"数据过期"的业务错误，调用方刷新后重试。
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
