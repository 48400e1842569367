package shared

import "fmt"

// OrderLockKey builds the redis key guarding submission of a sales order.
func OrderLockKey(orderID int64) string {
	return fmt.Sprintf("sales:order:%d:lock", orderID)
}

// DraftKey builds the redis key holding the working copy of a sales order.
func DraftKey(orderID int64) string {
	return fmt.Sprintf("sales:draft:%d", orderID)
}
