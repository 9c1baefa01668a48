package models

// Operator 操作員帳號：admin 可執行管理操作，attendant 僅能操作閘門進出場
type Operator struct {
	OperatorID int    `json:"operator_id" gorm:"primaryKey;autoIncrement;type:INT"`
	Name       string `json:"name" gorm:"type:varchar(50);not null"`
	Email      string `json:"email" gorm:"type:varchar(100);not null;uniqueIndex"`
	Password   string `json:"password" gorm:"type:varchar(100);not null"`
	Role       string `json:"role" gorm:"type:enum('admin', 'attendant');not null"`
}

// TableName 指定表名稱為 operator
func (Operator) TableName() string {
	return "operator"
}

type OperatorResponse struct {
	OperatorID int    `json:"operator_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
}

func (o *Operator) ToResponse() OperatorResponse {
	return OperatorResponse{
		OperatorID: o.OperatorID,
		Name:       o.Name,
		Email:      o.Email,
		Role:       o.Role,
	}
}
