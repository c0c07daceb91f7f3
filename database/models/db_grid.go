package database

import "gorm.io/gorm"

type GridStatusType string

type OrderSideType string

type OrderStatusType string

type Grid struct {
	gorm.Model
	GridID          string         `json:"gridId" gorm:"uniqueIndex:idx_grid_id;size:200"`
	Pair            string         `json:"pair" gorm:"size:200"`
	CenterPrice     float64        `json:"centerPrice"`
	Spacing         float64        `json:"spacing"`
	Levels          int            `json:"levels"`
	SizePerLevel    float64        `json:"sizePerLevel"`
	LiquidityFactor float64        `json:"liquidityFactor"`
	LiquidityScaled bool           `json:"liquidityScaled"`
	Status          GridStatusType `json:"status"`
	Orders          []GridOrder    `gorm:"foreignKey:GridRowID"`
}

type GridOrder struct {
	gorm.Model
	GridRowID  uint
	GridID     string          `json:"gridId" gorm:"uniqueIndex:idx_grid_side_level;size:200"`
	Pair       string          `json:"pair" gorm:"size:200"`
	Side       OrderSideType   `json:"side" gorm:"uniqueIndex:idx_grid_side_level;size:10"`
	LevelIndex int             `json:"levelIndex" gorm:"uniqueIndex:idx_grid_side_level"`
	Price      float64         `json:"price"`
	Size       float64         `json:"size"`
	Status     OrderStatusType `json:"status"`
	OrderRef   string          `json:"orderRef"`
	TxRef      string          `json:"txRef"`
}
