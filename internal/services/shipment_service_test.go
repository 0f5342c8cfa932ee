package services

import (
	"errors"

	"assetflow/internal/common"
	"assetflow/internal/models"

	"github.com/google/uuid"
)

func (suite *RelocationServiceTestSuite) shipToWarehouse(p *models.Product) *models.Shipment {
	result, err := suite.service.Relocate(suite.ctx, "acme", actor, &models.RelocationRequest{
		ProductID:      p.ID,
		TargetLocation: models.LocationFPWarehouse,
		ActionType:     models.ActionReturn,
		FPShipment:     true,
	})
	suite.Require().NoError(err)
	suite.Require().NotNil(result.Shipment)
	return result.Shipment
}

func (suite *RelocationServiceTestSuite) TestReceivedShipmentReleasesItem() {
	member := suite.seedMember("AR", true)
	p := suite.seedEmbedded(member)
	shipment := suite.shipToWarehouse(p)
	suite.True(suite.data().Members[member.ID].ActiveShipment)

	// Still in transit: moving again conflicts.
	_, err := suite.service.Relocate(suite.ctx, "acme", actor, &models.RelocationRequest{
		ProductID:      p.ID,
		TargetLocation: models.LocationOurOffice,
		ActionType:     models.ActionRelocate,
	})
	var conflict *common.ConflictingActiveShipmentError
	suite.Require().ErrorAs(err, &conflict)

	suite.projection.snapshots = nil
	resolution, err := suite.shipments.UpdateStatus(suite.ctx, "acme", actor, shipment.ID,
		&models.ShipmentStatusRequest{Status: models.ShipmentReceived})
	suite.Require().NoError(err)

	suite.Equal(models.ShipmentReceived, resolution.Shipment.Status)
	suite.Require().Len(resolution.Products, 1)
	suite.Equal(models.StatusAvailable, resolution.Products[0].Status)
	suite.Equal(models.ShipmentReceived, suite.data().Shipments[shipment.ID].Status)

	stored := suite.data().Products[p.ID]
	suite.False(stored.ActiveShipment)
	suite.False(stored.FPShipment)
	suite.False(suite.data().Members[member.ID].ActiveShipment)

	suite.Require().Len(suite.projection.snapshots, 1)
	suite.False(suite.projection.snapshots[0].Product.ActiveShipment)

	records := suite.data().History
	last := records[len(records)-1]
	suite.Equal(models.ActionResolveShipment, last.ActionType)
	suite.Equal(models.ItemShipment, last.ItemType)

	// Released: the item moves again.
	result, err := suite.service.Relocate(suite.ctx, "acme", actor, &models.RelocationRequest{
		ProductID:      p.ID,
		TargetLocation: models.LocationOurOffice,
		ActionType:     models.ActionRelocate,
	})
	suite.Require().NoError(err)
	suite.Equal(models.LocationOurOffice, result.Product.Location)
	suite.requireSingleHome(p.ID)
}

func (suite *RelocationServiceTestSuite) TestCancelledShipmentReleasesEmbeddedItem() {
	from := suite.seedMember("AR", true)
	to := suite.seedMember("AR", true)
	p := suite.seedEmbedded(from)
	target := to.ID

	result, err := suite.service.Relocate(suite.ctx, "acme", actor, &models.RelocationRequest{
		ProductID:      p.ID,
		TargetLocation: models.LocationEmployee,
		TargetMemberID: &target,
		ActionType:     models.ActionReassign,
		FPShipment:     true,
	})
	suite.Require().NoError(err)
	suite.True(suite.data().Members[from.ID].ActiveShipment)
	suite.True(suite.data().Members[to.ID].ActiveShipment)

	_, err = suite.shipments.UpdateStatus(suite.ctx, "acme", actor, result.Shipment.ID,
		&models.ShipmentStatusRequest{Status: models.ShipmentCancelled})
	suite.Require().NoError(err)

	holder := suite.data().Members[to.ID]
	idx := holder.ProductIndex(p.ID)
	suite.Require().GreaterOrEqual(idx, 0)
	suite.False(holder.Products[idx].ActiveShipment)
	suite.Equal(models.StatusDelivered, holder.Products[idx].Status)
	suite.False(holder.ActiveShipment)
	suite.False(suite.data().Members[from.ID].ActiveShipment)
	suite.requireSingleHome(p.ID)

	_, err = suite.service.Relocate(suite.ctx, "acme", actor, &models.RelocationRequest{
		ProductID:      p.ID,
		TargetLocation: models.LocationOurOffice,
		ActionType:     models.ActionReturn,
	})
	suite.NoError(err)
}

func (suite *RelocationServiceTestSuite) TestMemberKeepsFlagWhileAnotherShipmentIsOpen() {
	member := suite.seedMember("AR", true)
	first := suite.seedEmbedded(member)
	second := suite.seedEmbedded(member)

	shipment := suite.shipToWarehouse(first)
	suite.shipToWarehouse(second)

	_, err := suite.shipments.UpdateStatus(suite.ctx, "acme", actor, shipment.ID,
		&models.ShipmentStatusRequest{Status: models.ShipmentReceived})
	suite.Require().NoError(err)

	suite.True(suite.data().Members[member.ID].ActiveShipment)
	suite.False(suite.data().Products[first.ID].ActiveShipment)
	suite.True(suite.data().Products[second.ID].ActiveShipment)
}

func (suite *RelocationServiceTestSuite) TestResolvedShipmentCannotBeResolvedAgain() {
	member := suite.seedMember("AR", true)
	p := suite.seedEmbedded(member)
	shipment := suite.shipToWarehouse(p)

	_, err := suite.shipments.UpdateStatus(suite.ctx, "acme", actor, shipment.ID,
		&models.ShipmentStatusRequest{Status: models.ShipmentReceived})
	suite.Require().NoError(err)

	_, err = suite.shipments.UpdateStatus(suite.ctx, "acme", actor, shipment.ID,
		&models.ShipmentStatusRequest{Status: models.ShipmentCancelled})
	var validation *common.ValidationError
	suite.ErrorAs(err, &validation)
	suite.Equal(models.ShipmentReceived, suite.data().Shipments[shipment.ID].Status)
}

func (suite *RelocationServiceTestSuite) TestUpdateShipmentStatusRejectsInput() {
	_, err := suite.shipments.UpdateStatus(suite.ctx, "acme", actor, uuid.New(),
		&models.ShipmentStatusRequest{Status: models.ShipmentInTransit})
	var validation *common.ValidationError
	suite.ErrorAs(err, &validation)

	_, err = suite.shipments.UpdateStatus(suite.ctx, "acme", actor, uuid.New(),
		&models.ShipmentStatusRequest{Status: models.ShipmentReceived})
	suite.True(errors.Is(err, common.ErrNotFound))

	_, err = suite.shipments.UpdateStatus(suite.ctx, "acme", "", uuid.New(), nil)
	suite.ErrorAs(err, &validation)
}
