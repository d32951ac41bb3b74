package models

// Cat 已入库的猫咪记录，id 由数据库分配
type Cat struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"column:name;type:text;not null" json:"name"`
	ImagePath string `gorm:"column:image_path;type:text;not null" json:"image_path"`
}

// TableName 表名固定为 cats
func (Cat) TableName() string {
	return "cats"
}

// NewCat 待插入的记录
type NewCat struct {
	Name      string
	ImagePath string
}
